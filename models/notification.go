package models

import "time"

// Notification is a message to a single account. Only IsRead changes after creation.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"index:idx_notif_recipient_read;not null" json:"recipient_id"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	IsRead      bool      `gorm:"index:idx_notif_recipient_read;not null;default:false" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
