package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
)

// ReportRepository keeps reports in memory
type ReportRepository struct {
	mu      sync.RWMutex
	reports []models.Report
}

var _ database.ReportRepositoryInterface = (*ReportRepository)(nil)

// NewReportRepository creates an empty report store
func NewReportRepository() *ReportRepository {
	return &ReportRepository{}
}

// Create stores a report
func (r *ReportRepository) Create(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	report.CreatedAt = time.Now().UTC()
	r.reports = append(r.reports, *report)
	return nil
}

// GetLatest returns the user's most recently stored report of kind
func (r *ReportRepository) GetLatest(_ context.Context, userID uuid.UUID, kind models.ReportKind) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.reports) - 1; i >= 0; i-- {
		rep := r.reports[i]
		if rep.UserID == userID && rep.Kind == kind {
			return &rep, nil
		}
	}
	return nil, fmt.Errorf("report not found: %w", database.ErrNotFound)
}
