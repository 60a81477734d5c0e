package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rodeway/board/models"
)

// ModerationService keeps the report ledger and account notifications.
type ModerationService struct {
	base
}

// NewModerationService creates a ModerationService.
func NewModerationService(db *gorm.DB, opts ...Option) *ModerationService {
	return &ModerationService{base: newBase(db, opts)}
}

// Target names the post or comment a report is about.
type Target struct {
	Kind models.TargetKind `json:"kind"`
	ID   uint              `json:"id"`
}

const maxReasonLen = 500

// FileReport appends a report and tells every admin about it.
// The target is recorded as given; whether it still exists is for the reviewing admin to find out.
func (s *ModerationService) FileReport(ctx context.Context, sess Session, target Target, reason string) (*models.Report, error) {
	if !target.Kind.Valid() {
		return nil, invalid("unknown report target %q", target.Kind)
	}
	if target.ID == 0 {
		return nil, invalid("report target id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || utf8.RuneCountInString(reason) > maxReasonLen {
		return nil, invalid("reason must be 1-%d characters", maxReasonLen)
	}

	var report models.Report
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		reporter, err := loadActor(tx, sess)
		if err != nil {
			return err
		}
		now := s.stamp()
		report = models.Report{
			TargetType: target.Kind,
			TargetID:   target.ID,
			ReporterID: reporter.ID,
			Reason:     reason,
			CreatedAt:  now,
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}

		var admins []uint
		if err := tx.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Order("id").Pluck("id", &admins).Error; err != nil {
			return err
		}
		msg := fmt.Sprintf("New report on %s #%d: %s", target.Kind, target.ID, reason)
		for _, id := range admins {
			if id == reporter.ID {
				continue
			}
			if _, err := createNotification(tx, id, msg, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report filed",
		zap.Uint("report_id", report.ID),
		zap.String("target_type", string(report.TargetType)),
		zap.Uint("target_id", report.TargetID),
		zap.Uint("reporter_id", report.ReporterID))
	return &report, nil
}

// ListReports returns every report in the order it was filed. Admin only.
func (s *ModerationService) ListReports(ctx context.Context, actor Session) ([]models.Report, error) {
	var reports []models.Report
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := requireAdmin(tx, actor); err != nil {
			return err
		}
		return tx.Order("id ASC").Find(&reports).Error
	})
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, nil
}

// Notify sends a message to an account.
func (s *ModerationService) Notify(ctx context.Context, recipientID uint, message string) (*models.Notification, error) {
	if strings.TrimSpace(message) == "" {
		return nil, invalid("message cannot be empty")
	}
	var n *models.Notification
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if _, err := loadAccount(tx, recipientID); err != nil {
			return err
		}
		created, err := createNotification(tx, recipientID, message, s.stamp())
		n = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func createNotification(tx *gorm.DB, recipientID uint, message string, at time.Time) (*models.Notification, error) {
	n := models.Notification{
		RecipientID: recipientID,
		Message:     message,
		CreatedAt:   at,
	}
	if err := tx.Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead marks one of the session's notifications as read. Repeating it is a no-op.
// Another account's notification is reported as missing.
func (s *ModerationService) MarkRead(ctx context.Context, sess Session, notificationID uint) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		if !sess.Authenticated() {
			return ErrAccessDenied
		}
		var n models.Notification
		err := tx.Where("id = ? AND recipient_id = ?", notificationID, sess.AccountID).First(&n).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotificationNotFound
			}
			return err
		}
		if n.IsRead {
			return nil
		}
		return tx.Model(&n).Update("is_read", true).Error
	})
}

// MarkAllRead marks every unread notification of the session as read and returns how many changed.
func (s *ModerationService) MarkAllRead(ctx context.Context, sess Session) (int64, error) {
	if !sess.Authenticated() {
		return 0, ErrAccessDenied
	}
	var changed int64
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Notification{}).
			Where("recipient_id = ? AND is_read = ?", sess.AccountID, false).
			Update("is_read", true)
		changed = res.RowsAffected
		return res.Error
	})
	return changed, err
}

// ListNotifications returns the session's notifications, newest first.
func (s *ModerationService) ListNotifications(ctx context.Context, sess Session, unreadOnly bool) ([]models.Notification, error) {
	if !sess.Authenticated() {
		return nil, ErrAccessDenied
	}
	list := []models.Notification{}
	err := s.read(ctx, func(db *gorm.DB) error {
		q := db.Where("recipient_id = ?", sess.AccountID)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q.Order("created_at DESC").Order("id DESC").Find(&list).Error
	})
	return list, err
}

// UnreadCount returns how many of the session's notifications are unread.
func (s *ModerationService) UnreadCount(ctx context.Context, sess Session) (int64, error) {
	if !sess.Authenticated() {
		return 0, ErrAccessDenied
	}
	var n int64
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Notification{}).
			Where("recipient_id = ? AND is_read = ?", sess.AccountID, false).
			Count(&n).Error
	})
	return n, err
}
