package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a reply to a post, optionally threaded under another comment.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"index;not null" json:"post_id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	ParentID  *uint          `gorm:"index" json:"parent_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Likes     int64          `gorm:"not null;default:0" json:"likes"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	User      User           `json:"author"`
}
