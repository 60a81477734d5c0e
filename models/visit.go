package models

import "time"

// Visit is one entry in the visit audit log. UserID is nil for anonymous visitors.
type Visit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"user_id"`
	VisitedAt time.Time `gorm:"index;not null" json:"visited_at"`
}
