package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeWeeklyReport generates one user's weekly report
	JobTypeWeeklyReport JobType = "weekly_report"
)

// DefaultMaxRetries is how often a failed job is retried before it is dead-lettered
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID     uuid.UUID `json:"id"`
	Type   JobType   `json:"type"`
	UserID uuid.UUID `json:"user_id"`
	// WeekStart identifies the report week (Monday 00:00 in the report time zone)
	WeekStart  time.Time  `json:"week_start"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewWeeklyReportJob creates a report job for userID's week starting at
// weekStart. The job expires when that week ends.
func NewWeeklyReportJob(userID uuid.UUID, weekStart time.Time) *Job {
	notAfter := weekStart.AddDate(0, 0, 7)
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypeWeeklyReport,
		UserID:     userID,
		WeekStart:  weekStart,
		NotAfter:   &notAfter,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
}

// ShouldProcess checks if the job should be processed at now
func (j *Job) ShouldProcess(now time.Time) bool {
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired(now)
}

// IsExpired checks if the job has expired at now
func (j *Job) IsExpired(now time.Time) bool {
	return j.NotAfter != nil && now.After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry returns a copy of the job scheduled to run again after delay
func (j *Job) Retry(now time.Time, delay time.Duration) *Job {
	next := *j
	next.RetryCount++
	notBefore := now.Add(delay)
	next.NotBefore = &notBefore
	return &next
}
