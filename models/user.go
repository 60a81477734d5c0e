package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values stored on User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a board account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	Nickname     string         `gorm:"size:64" json:"nickname"`
	Role         string         `gorm:"size:16;not null;default:user;index" json:"role"`
	Points       int            `gorm:"not null;default:0" json:"points"`
	IsBanned     bool           `gorm:"not null;default:false" json:"is_banned"`
	AvatarHandle string         `gorm:"size:512" json:"avatar_handle"`
	Signature    string         `gorm:"size:255" json:"signature"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the account holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := tx.Statement.DB.NowFunc()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.UpdatedAt = now
	return nil
}
