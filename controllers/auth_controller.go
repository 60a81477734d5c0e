package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rodeway/board/middleware"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

// AuthController handles registration, login, logout and profile endpoints.
type AuthController struct {
	accounts *services.AccountService
	uploads  *services.UploadService
	tokenTTL time.Duration
	// maxAvatarBytes caps the raw image accepted before resizing.
	maxAvatarBytes int64
}

// NewAuthController creates an AuthController.
func NewAuthController(accounts *services.AccountService, uploads *services.UploadService, tokenTTL time.Duration, maxAvatarBytes int64) *AuthController {
	return &AuthController{accounts: accounts, uploads: uploads, tokenTTL: tokenTTL, maxAvatarBytes: maxAvatarBytes}
}

// Register creates a new local account.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=64"`
		Password string `json:"password" binding:"required,min=3"`
		Nickname string `json:"nickname"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40002, "invalid request payload")
		return
	}

	user, err := a.accounts.Register(ctx.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Nickname: utils.SanitizePlain(req.Nickname),
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": services.ProfileOf(user)})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.accounts.Authenticate(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{
		"token": token,
		"user":  services.ProfileOf(user),
	})
}

// Logout revokes the presented token until it would have expired anyway.
func (a *AuthController) Logout(ctx *gin.Context) {
	claims, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}
	expiresAt := time.Now().Add(a.tokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(claims.ID, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's own profile.
func (a *AuthController) Me(ctx *gin.Context) {
	p, err := a.accounts.Profile(ctx.Request.Context(), middleware.SessionFrom(ctx).AccountID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, p)
}

// UpdateProfile changes the nickname and/or signature of the caller.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	var req struct {
		Nickname  *string `json:"nickname"`
		Signature *string `json:"signature"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid request payload")
		return
	}

	id := middleware.SessionFrom(ctx).AccountID
	if req.Nickname != nil {
		if err := a.accounts.SetNickname(ctx.Request.Context(), id, utils.SanitizePlain(*req.Nickname)); err != nil {
			respondError(ctx, err)
			return
		}
	}
	if req.Signature != nil {
		if err := a.accounts.SetSignature(ctx.Request.Context(), id, utils.SanitizePlain(*req.Signature)); err != nil {
			respondError(ctx, err)
			return
		}
	}
	a.Me(ctx)
}

// UploadAvatar resizes the uploaded image to a square JPEG and makes it the caller's avatar.
func (a *AuthController) UploadAvatar(ctx *gin.Context) {
	file, _, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	defer file.Close()

	jpeg, err := utils.NormalizeAvatar(file, a.maxAvatarBytes)
	if err != nil {
		if errors.Is(err, utils.ErrImageTooLarge) {
			respondError(ctx, err)
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40031, "unsupported image")
		return
	}

	rec, err := a.uploads.SetAvatar(ctx.Request.Context(), middleware.SessionFrom(ctx), jpeg)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"avatar_handle": rec.Handle})
}

// GetUserPublic returns the public profile of an account.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	p, err := a.accounts.Profile(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, p)
}

// BanUser blocks an account. Admin only.
func (a *AuthController) BanUser(ctx *gin.Context) {
	a.setBanned(ctx, true)
}

// UnbanUser lifts a ban. Admin only.
func (a *AuthController) UnbanUser(ctx *gin.Context) {
	a.setBanned(ctx, false)
}

func (a *AuthController) setBanned(ctx *gin.Context, banned bool) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actor := middleware.SessionFrom(ctx)
	var err error
	if banned {
		err = a.accounts.Ban(ctx.Request.Context(), actor, id)
	} else {
		err = a.accounts.Unban(ctx.Request.Context(), actor, id)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "is_banned": banned})
}
