package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
)

// ReportRepository stores generated reports
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create stores a report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO reports (id, user_id, kind, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, report.ID, report.UserID, report.Kind, report.Content, time.Now().UTC()).Scan(&report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetLatest returns the user's most recent report of the given kind
func (r *ReportRepository) GetLatest(ctx context.Context, userID uuid.UUID, kind models.ReportKind) (*models.Report, error) {
	report := &models.Report{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, content, created_at
		FROM reports
		WHERE user_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, kind).Scan(&report.ID, &report.UserID, &report.Kind, &report.Content, &report.CreatedAt)
	if err != nil {
		if errors.Is(mapError(err, nil), ErrNotFound) {
			return nil, fmt.Errorf("report not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}
