package models

import (
	"time"

	"gorm.io/gorm"
)

// Post categories.
const (
	CategoryFeed   = "feed"
	CategoryNotice = "notice"
)

// Post represents a board post created by a user.
type Post struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index;not null" json:"user_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Category    string         `gorm:"size:16;not null;default:feed;index" json:"category"`
	Attachments string         `gorm:"type:text" json:"attachments"` // JSON array of blob handles
	Views       int64          `gorm:"not null;default:0" json:"views"`
	Likes       int64          `gorm:"not null;default:0" json:"likes"`
	Dislikes    int64          `gorm:"not null;default:0" json:"dislikes"`
	IsNotice    bool           `gorm:"not null;default:false;index" json:"is_notice"`
	IsSecret    bool           `gorm:"not null;default:false" json:"is_secret"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	User        User           `json:"author"`
}
