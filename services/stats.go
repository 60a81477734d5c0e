package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rodeway/board/models"
)

// StatsService records visits and reports site-wide counters.
type StatsService struct {
	base
}

// NewStatsService creates a StatsService.
func NewStatsService(db *gorm.DB, opts ...Option) *StatsService {
	return &StatsService{base: newBase(db, opts)}
}

// Summary holds the site counters shown on the front page.
type Summary struct {
	Users       int64 `json:"users"`
	Posts       int64 `json:"posts"`
	Comments    int64 `json:"comments"`
	Visits      int64 `json:"visits"`
	VisitsToday int64 `json:"visits_today"`
}

// RecordVisit appends one visit. A nil accountID records an anonymous visitor.
func (s *StatsService) RecordVisit(ctx context.Context, accountID *uint) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&models.Visit{UserID: accountID, VisitedAt: s.stamp()}).Error
	})
}

// Summary counts live accounts, posts, comments and visits. "Today" starts at midnight UTC.
func (s *StatsService) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	now := s.stamp()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	err := s.read(ctx, func(db *gorm.DB) error {
		counts := []struct {
			model interface{}
			dst   *int64
		}{
			{&models.User{}, &sum.Users},
			{&models.Post{}, &sum.Posts},
			{&models.Comment{}, &sum.Comments},
			{&models.Visit{}, &sum.Visits},
		}
		for _, c := range counts {
			if err := db.Model(c.model).Count(c.dst).Error; err != nil {
				return err
			}
		}
		return db.Model(&models.Visit{}).Where("visited_at >= ?", midnight).Count(&sum.VisitsToday).Error
	})
	return sum, err
}
