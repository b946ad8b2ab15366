package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestScheduleConfig_DueAt(t *testing.T) {
	t.Parallel()

	berlin := time.FixedZone("CET", 3600)
	tests := []struct {
		name          string
		schedule      ScheduleConfig
		now           time.Time
		wantWeekStart time.Time
		wantDue       time.Time
	}{
		{
			name:          "friday evening utc",
			schedule:      ScheduleConfig{Location: time.UTC, Weekday: time.Friday, Hour: 17},
			now:           time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
			wantWeekStart: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			wantDue:       time.Date(2026, 3, 13, 17, 0, 0, 0, time.UTC),
		},
		{
			name:          "sunday belongs to the week before",
			schedule:      ScheduleConfig{Location: time.UTC, Weekday: time.Sunday, Hour: 20},
			now:           time.Date(2026, 3, 15, 21, 0, 0, 0, time.UTC),
			wantWeekStart: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			wantDue:       time.Date(2026, 3, 15, 20, 0, 0, 0, time.UTC),
		},
		{
			name:          "monday midnight in another zone",
			schedule:      ScheduleConfig{Location: berlin, Weekday: time.Monday, Hour: 0},
			now:           time.Date(2026, 3, 8, 23, 30, 0, 0, time.UTC),
			wantWeekStart: time.Date(2026, 3, 9, 0, 0, 0, 0, berlin),
			wantDue:       time.Date(2026, 3, 9, 0, 0, 0, 0, berlin),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			weekStart, due := tt.schedule.DueAt(tt.now)
			if !weekStart.Equal(tt.wantWeekStart) {
				t.Errorf("Expected week start %v, got %v", tt.wantWeekStart, weekStart)
			}
			if !due.Equal(tt.wantDue) {
				t.Errorf("Expected due %v, got %v", tt.wantDue, due)
			}
		})
	}
}

func newTestScheduler(users UserLister, reports ReportGenerator, publisher queue.Publisher, hour int) *Scheduler {
	s := NewScheduler(users, reports, publisher, ScheduleConfig{Location: time.UTC, Weekday: time.Friday, Hour: hour}, zap.NewNop())
	s.now = func() time.Time { return processorNow }
	return s
}

func TestScheduler_NotDueYet(t *testing.T) {
	t.Parallel()

	listed := false
	users := &mockUsers{listFunc: func(context.Context) ([]uuid.UUID, error) {
		listed = true
		return []uuid.UUID{uuid.New()}, nil
	}}
	publisher := &mockPublisher{}

	n, err := newTestScheduler(users, &mockReports{}, publisher, 19).ScheduleWeeklyReports(context.Background())
	if err != nil {
		t.Fatalf("ScheduleWeeklyReports() error = %v", err)
	}
	if n != 0 || len(publisher.enqueued()) != 0 {
		t.Errorf("Expected nothing enqueued, got %d", n)
	}
	if listed {
		t.Error("Expected users not to be listed before the due time")
	}
}

func TestScheduler_EnqueuesUsersWithoutCurrentReport(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 3, 13, 17, 0, 0, 0, time.UTC)
	noReport, fresh, stale := uuid.New(), uuid.New(), uuid.New()
	users := &mockUsers{listFunc: func(context.Context) ([]uuid.UUID, error) {
		return []uuid.UUID{noReport, fresh, stale}, nil
	}}
	reports := &mockReports{latestFunc: func(_ context.Context, userID uuid.UUID) (*models.Report, error) {
		switch userID {
		case fresh:
			return &models.Report{UserID: userID, CreatedAt: due.Add(30 * time.Minute)}, nil
		case stale:
			return &models.Report{UserID: userID, CreatedAt: due.Add(-48 * time.Hour)}, nil
		}
		return nil, fmt.Errorf("report not found: %w", database.ErrNotFound)
	}}
	publisher := &mockPublisher{}
	s := newTestScheduler(users, reports, publisher, 17)

	n, err := s.ScheduleWeeklyReports(context.Background())
	if err != nil {
		t.Fatalf("ScheduleWeeklyReports() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 jobs, got %d", n)
	}

	jobs := publisher.enqueued()
	got := map[uuid.UUID]bool{}
	for _, job := range jobs {
		got[job.UserID] = true
		if job.Type != queue.JobTypeWeeklyReport {
			t.Errorf("Expected job type %s, got %s", queue.JobTypeWeeklyReport, job.Type)
		}
		if want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC); !job.WeekStart.Equal(want) {
			t.Errorf("Expected week start %v, got %v", want, job.WeekStart)
		}
	}
	if !got[noReport] || !got[stale] || got[fresh] {
		t.Errorf("Unexpected users enqueued: %v", got)
	}

	// The same week is not scheduled twice
	n, err = s.ScheduleWeeklyReports(context.Background())
	if err != nil {
		t.Fatalf("second ScheduleWeeklyReports() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no jobs on second run, got %d", n)
	}
}

func TestScheduler_RetriesFailedEnqueue(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	users := &mockUsers{listFunc: func(context.Context) ([]uuid.UUID, error) {
		return []uuid.UUID{userID}, nil
	}}
	fail := true
	publisher := &mockPublisher{enqueueFunc: func(context.Context, *queue.Job) error {
		if fail {
			return errors.New("broker down")
		}
		return nil
	}}
	s := newTestScheduler(users, &mockReports{}, publisher, 17)

	if n, err := s.ScheduleWeeklyReports(context.Background()); err != nil || n != 0 {
		t.Fatalf("Expected (0, nil) while broker is down, got (%d, %v)", n, err)
	}

	fail = false
	if n, err := s.ScheduleWeeklyReports(context.Background()); err != nil || n != 1 {
		t.Fatalf("Expected (1, nil) after recovery, got (%d, %v)", n, err)
	}
}

func TestScheduler_ListError(t *testing.T) {
	t.Parallel()

	users := &mockUsers{listFunc: func(context.Context) ([]uuid.UUID, error) {
		return nil, errors.New("db down")
	}}
	if _, err := newTestScheduler(users, &mockReports{}, &mockPublisher{}, 17).ScheduleWeeklyReports(context.Background()); err == nil {
		t.Error("Expected error when users cannot be listed")
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	users := &mockUsers{listFunc: func(context.Context) ([]uuid.UUID, error) {
		cancel()
		return nil, nil
	}}

	done := make(chan error, 1)
	go func() {
		done <- newTestScheduler(users, &mockReports{}, &mockPublisher{}, 17).Run(ctx, time.Hour)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
