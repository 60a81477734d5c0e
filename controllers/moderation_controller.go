package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rodeway/board/middleware"
	"github.com/rodeway/board/models"
	"github.com/rodeway/board/services"
	"github.com/rodeway/board/utils"
)

// ModerationController serves reports and notifications.
type ModerationController struct {
	moderation *services.ModerationService
}

// NewModerationController creates a ModerationController.
func NewModerationController(moderation *services.ModerationService) *ModerationController {
	return &ModerationController{moderation: moderation}
}

// FileReport records a complaint about a post or a comment.
func (m *ModerationController) FileReport(ctx *gin.Context) {
	var req struct {
		TargetType string `json:"target_type" binding:"required"`
		TargetID   uint   `json:"target_id" binding:"required"`
		Reason     string `json:"reason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid request payload")
		return
	}

	target := services.Target{Kind: models.TargetKind(strings.ToLower(strings.TrimSpace(req.TargetType))), ID: req.TargetID}
	report, err := m.moderation.FileReport(ctx.Request.Context(), middleware.SessionFrom(ctx), target, utils.SanitizePlain(req.Reason))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"report": report})
}

// ListReports returns all reports in filing order. Admin only.
func (m *ModerationController) ListReports(ctx *gin.Context) {
	reports, err := m.moderation.ListReports(ctx.Request.Context(), middleware.SessionFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": reports})
}

// ListNotifications returns the caller's notifications; ?unread=1 limits them to unread ones.
func (m *ModerationController) ListNotifications(ctx *gin.Context) {
	sess := middleware.SessionFrom(ctx)
	unreadOnly := ctx.Query("unread") == "1" || ctx.Query("unread") == "true"
	list, err := m.moderation.ListNotifications(ctx.Request.Context(), sess, unreadOnly)
	if err != nil {
		respondError(ctx, err)
		return
	}
	unread, err := m.moderation.UnreadCount(ctx.Request.Context(), sess)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": list, "unread": unread})
}

// MarkRead marks one notification as read.
func (m *ModerationController) MarkRead(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if err := m.moderation.MarkRead(ctx.Request.Context(), middleware.SessionFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "is_read": true})
}

// MarkAllRead marks every notification of the caller as read.
func (m *ModerationController) MarkAllRead(ctx *gin.Context) {
	n, err := m.moderation.MarkAllRead(ctx.Request.Context(), middleware.SessionFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"updated": n})
}
