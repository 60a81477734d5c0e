package models

import "time"

// UploadedFile records a blob written through the upload endpoint.
type UploadedFile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Handle      string    `gorm:"size:1024;not null;uniqueIndex" json:"handle"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:128" json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// All returns every model for auto migration.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Report{}, &Notification{}, &Visit{}, &UploadedFile{}}
}
