package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReportNotStored is returned alongside a generated report that could not be saved
var ErrReportNotStored = errors.New("report generated but not stored")

// ReportStore persists generated reports
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetLatest(ctx context.Context, userID uuid.UUID, kind models.ReportKind) (*models.Report, error)
}

// ReportService produces weekly reports by running the agent with a fixed instruction
type ReportService struct {
	agent   *Agent
	reports ReportStore
	logger  *zap.Logger
}

// NewReportService creates a report service
func NewReportService(agent *Agent, reports ReportStore, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{agent: agent, reports: reports, logger: logger}
}

// GenerateWeekly runs the weekly report instruction for the actor bound to ctx.
// When the report is generated but saving fails, both the report and an error
// wrapping ErrReportNotStored are returned.
func (s *ReportService) GenerateWeekly(ctx context.Context) (*models.Report, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.agent.Run(ctx, WeeklyReportPrompt)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		UserID:  actor,
		Kind:    models.ReportKindWeekly,
		Content: result.Reply,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		s.logger.Warn("failed_to_store_weekly_report",
			zap.String("user_id", actor.String()),
			zap.Error(err),
		)
		return report, fmt.Errorf("%w: %v", ErrReportNotStored, err)
	}

	s.logger.Info("weekly_report_generated",
		zap.String("user_id", actor.String()),
		zap.String("report_id", report.ID.String()),
		zap.Int("rounds", result.Rounds),
		zap.Bool("truncated", result.Truncated),
	)
	return report, nil
}

// LatestWeekly returns the most recent stored weekly report for userID
func (s *ReportService) LatestWeekly(ctx context.Context, userID uuid.UUID) (*models.Report, error) {
	return s.reports.GetLatest(ctx, userID, models.ReportKindWeekly)
}
