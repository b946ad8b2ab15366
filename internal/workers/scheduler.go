package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserLister lists every registered user
type UserLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ScheduleConfig says when in the week reports become due
type ScheduleConfig struct {
	Location *time.Location
	Weekday  time.Weekday
	Hour     int
}

// DueAt returns the moment reports for the week containing now become due
func (c ScheduleConfig) DueAt(now time.Time) (weekStart, due time.Time) {
	weekStart = ai.WeekStart(now, c.Location)
	offset := (int(c.Weekday) + 6) % 7
	due = weekStart.AddDate(0, 0, offset).Add(time.Duration(c.Hour) * time.Hour)
	return weekStart, due
}

// Scheduler enqueues one weekly report job per user once the week's report is due
type Scheduler struct {
	users     UserLister
	reports   ReportGenerator
	publisher queue.Publisher
	schedule  ScheduleConfig
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
	// enqueued remembers which week each user was last scheduled for
	enqueued map[uuid.UUID]time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(users UserLister, reports ReportGenerator, publisher queue.Publisher, schedule ScheduleConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}
	return &Scheduler{
		users:     users,
		reports:   reports,
		publisher: publisher,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
		enqueued:  make(map[uuid.UUID]time.Time),
	}
}

// ScheduleWeeklyReports enqueues report jobs for users whose latest weekly
// report predates this week's due time. It returns the number of jobs enqueued.
func (s *Scheduler) ScheduleWeeklyReports(ctx context.Context) (int, error) {
	now := s.now()
	weekStart, due := s.schedule.DueAt(now)
	if now.Before(due) {
		s.logger.Debug("weekly_reports_not_due", zap.Time("due", due))
		return 0, nil
	}

	userIDs, err := s.users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	enqueued := 0
	for _, userID := range userIDs {
		if last, ok := s.enqueued[userID]; ok && last.Equal(weekStart) {
			continue
		}

		latest, err := s.reports.LatestWeekly(ctx, userID)
		if err == nil && !latest.CreatedAt.Before(due) {
			s.enqueued[userID] = weekStart
			continue
		}
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			s.logger.Warn("failed_to_check_latest_report",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}

		if err := s.publisher.Enqueue(ctx, queue.NewWeeklyReportJob(userID, weekStart)); err != nil {
			s.logger.Warn("failed_to_enqueue_weekly_report",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			// Continue with other users
			continue
		}
		s.enqueued[userID] = weekStart
		enqueued++
	}

	s.logger.Info("scheduled_weekly_reports",
		zap.Int("user_count", len(userIDs)),
		zap.Int("enqueued", enqueued),
		zap.Time("week_start", weekStart),
	)
	return enqueued, nil
}

// Run checks for due reports immediately and then every interval until ctx is done
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScheduleWeeklyReports(ctx); err != nil {
			s.logger.Error("weekly_report_scheduling_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
