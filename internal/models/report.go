package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportKind identifies what produced a report
type ReportKind string

const (
	ReportKindWeekly ReportKind = "weekly"
)

// Report is a generated summary of a user's tasks
type Report struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Kind      ReportKind `json:"kind"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}
