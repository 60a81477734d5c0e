package models

import "time"

// TargetKind names what a report points at.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Valid reports whether k is one of the known target kinds.
func (k TargetKind) Valid() bool {
	return k == TargetPost || k == TargetComment
}

// Report is an append-only complaint about a post or a comment.
// TargetID is not a foreign key so reports outlive their targets.
type Report struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TargetType TargetKind `gorm:"size:16;not null;index:idx_report_target" json:"target_type"`
	TargetID   uint       `gorm:"not null;index:idx_report_target" json:"target_id"`
	ReporterID uint       `gorm:"index;not null" json:"reporter_id"`
	Reason     string     `gorm:"size:500;not null" json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
}
