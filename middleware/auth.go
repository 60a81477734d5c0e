package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rodeway/board/models"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

const (
	// ContextSessionKey stores the services.Session of the caller.
	ContextSessionKey = "session"
	// ContextClaimsKey stores the parsed JWT claims, used by logout.
	ContextClaimsKey = "claims"
)

// bearerClaims extracts and validates the bearer token. The returned code is zero on success.
func bearerClaims(ctx *gin.Context) (*utils.Claims, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, 40101, "authorization header missing"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, 40102, "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, 40103, "empty bearer token"
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, 40105, "invalid token"
	}
	if utils.IsTokenBlacklisted(claims.ID) {
		return nil, 40104, "token revoked"
	}
	return claims, 0, ""
}

func setSession(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextClaimsKey, claims)
	ctx.Set(ContextSessionKey, services.Session{
		AccountID: claims.UserID,
		Username:  claims.Username,
		Role:      claims.Role,
	})
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, code, msg := bearerClaims(ctx)
		if code != 0 {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		setSession(ctx, claims)
		ctx.Next()
	}
}

// OptionalAuth attaches a session when a valid token is present and lets anonymous requests through.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") != "" {
			if claims, code, _ := bearerClaims(ctx); code == 0 {
				setSession(ctx, claims)
			}
		}
		ctx.Next()
	}
}

// AdminRequired rejects sessions whose token does not carry the admin role.
// Services check the stored role again, so a demoted admin with an old token still fails there.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if SessionFrom(ctx).Role != models.RoleAdmin {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin only")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// SessionFrom returns the caller's session, or services.Anonymous when none was attached.
func SessionFrom(ctx *gin.Context) services.Session {
	if v, ok := ctx.Get(ContextSessionKey); ok {
		if sess, ok := v.(services.Session); ok {
			return sess
		}
	}
	return services.Anonymous
}

// ClaimsFrom returns the parsed token claims of an authenticated request.
func ClaimsFrom(ctx *gin.Context) (*utils.Claims, bool) {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}
