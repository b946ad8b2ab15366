package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var processorNow = time.Date(2026, 3, 13, 18, 0, 0, 0, time.UTC)

func newTestProcessor(reports ReportGenerator, publisher queue.Publisher) *ReportProcessor {
	p := NewReportProcessor(reports, publisher, zap.NewNop())
	p.now = func() time.Time { return processorNow }
	return p
}

func testJob() *queue.Job {
	return queue.NewWeeklyReportJob(uuid.New(), ai.WeekStart(processorNow, time.UTC))
}

func TestReportProcessor_GeneratesForJobUser(t *testing.T) {
	t.Parallel()

	job := testJob()
	var actor uuid.UUID
	reports := &mockReports{
		generateFunc: func(ctx context.Context) (*models.Report, error) {
			var err error
			actor, err = ai.ActorFromContext(ctx)
			if err != nil {
				return nil, err
			}
			return &models.Report{ID: uuid.New(), UserID: actor}, nil
		},
	}
	msg := &mockMessage{job: job}

	if err := newTestProcessor(reports, &mockPublisher{}).ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if actor != job.UserID {
		t.Errorf("Expected actor %s, got %s", job.UserID, actor)
	}
	if !msg.acked {
		t.Error("Expected message to be acked")
	}
	if msg.nacked {
		t.Error("Expected message not to be nacked")
	}
}

func TestReportProcessor_SkipsWhenReportExists(t *testing.T) {
	t.Parallel()

	job := testJob()
	reports := &mockReports{
		latestFunc: func(ctx context.Context, userID uuid.UUID) (*models.Report, error) {
			return &models.Report{ID: uuid.New(), UserID: userID, CreatedAt: job.WeekStart.Add(time.Hour)}, nil
		},
	}
	msg := &mockMessage{job: job}

	if err := newTestProcessor(reports, &mockPublisher{}).ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}
	if reports.generateCount() != 0 {
		t.Errorf("Expected no generation, got %d", reports.generateCount())
	}
	if !msg.acked {
		t.Error("Expected message to be acked")
	}
}

func TestReportProcessor_UnknownJobType(t *testing.T) {
	t.Parallel()

	job := testJob()
	job.Type = "reprocess_user"
	msg := &mockMessage{job: job}

	if err := newTestProcessor(&mockReports{}, &mockPublisher{}).ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for unknown job type")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("Expected dead-letter nack, got nacked=%v requeued=%v", msg.nacked, msg.requeued)
	}
}

func TestReportProcessor_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		genErr        error
		retryCount    int
		noPublisher   bool
		publishErr    error
		wantEnqueued  bool
		wantRetries   int
		wantAck       bool
		wantNack      bool
		wantRequeue   bool
		wantReturnErr bool
	}{
		{
			name:         "transient error is re-enqueued with delay",
			genErr:       errors.New("connection reset"),
			wantEnqueued: true,
			wantRetries:  1,
			wantAck:      true,
		},
		{
			name:         "rate limit is re-enqueued with delay",
			genErr:       &ai.APIError{StatusCode: 429, Type: "rate_limit", Message: "slow down"},
			retryCount:   1,
			wantEnqueued: true,
			wantRetries:  2,
			wantAck:      true,
		},
		{
			name:         "quota error keeps retry budget",
			genErr:       &ai.APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true},
			retryCount:   queue.DefaultMaxRetries,
			wantEnqueued: true,
			wantRetries:  queue.DefaultMaxRetries,
			wantAck:      true,
		},
		{
			name:          "max retries dead-letters",
			genErr:        errors.New("boom"),
			retryCount:    queue.DefaultMaxRetries,
			wantNack:      true,
			wantReturnErr: true,
		},
		{
			name:          "storage quota failure spends retries",
			genErr:        fmt.Errorf("%w: pq: disk quota exceeded", ai.ErrReportNotStored),
			retryCount:    queue.DefaultMaxRetries,
			wantNack:      true,
			wantReturnErr: true,
		},
		{
			name:          "unconfigured model dead-letters",
			genErr:        ai.ErrNotConfigured,
			wantNack:      true,
			wantReturnErr: true,
		},
		{
			name:          "no publisher requeues through the broker",
			genErr:        errors.New("boom"),
			noPublisher:   true,
			wantNack:      true,
			wantRequeue:   true,
			wantReturnErr: true,
		},
		{
			name:          "failed re-enqueue requeues through the broker",
			genErr:        errors.New("boom"),
			publishErr:    errors.New("channel closed"),
			wantNack:      true,
			wantRequeue:   true,
			wantReturnErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			job := testJob()
			job.RetryCount = tt.retryCount
			reports := &mockReports{
				generateFunc: func(context.Context) (*models.Report, error) { return nil, tt.genErr },
			}
			publisher := &mockPublisher{
				enqueueFunc: func(context.Context, *queue.Job) error { return tt.publishErr },
			}
			var p *ReportProcessor
			if tt.noPublisher {
				p = newTestProcessor(reports, nil)
			} else {
				p = newTestProcessor(reports, publisher)
			}
			msg := &mockMessage{job: job}

			err := p.ProcessJob(context.Background(), msg)
			if tt.wantReturnErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantReturnErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if msg.acked != tt.wantAck {
				t.Errorf("Expected acked=%v, got %v", tt.wantAck, msg.acked)
			}
			if msg.nacked != tt.wantNack {
				t.Errorf("Expected nacked=%v, got %v", tt.wantNack, msg.nacked)
			}
			if msg.requeued != tt.wantRequeue {
				t.Errorf("Expected requeued=%v, got %v", tt.wantRequeue, msg.requeued)
			}

			jobs := publisher.enqueued()
			if !tt.wantEnqueued {
				if len(jobs) != 0 {
					t.Errorf("Expected no re-enqueued jobs, got %d", len(jobs))
				}
				return
			}
			if len(jobs) != 1 {
				t.Fatalf("Expected 1 re-enqueued job, got %d", len(jobs))
			}
			retry := jobs[0]
			if retry.ID != job.ID {
				t.Errorf("Expected job ID %s, got %s", job.ID, retry.ID)
			}
			if retry.RetryCount != tt.wantRetries {
				t.Errorf("Expected retry count %d, got %d", tt.wantRetries, retry.RetryCount)
			}
			if retry.NotBefore == nil || !retry.NotBefore.After(processorNow) {
				t.Errorf("Expected NotBefore after %v, got %v", processorNow, retry.NotBefore)
			}
		})
	}
}

func TestReportProcessor_MissingUser(t *testing.T) {
	t.Parallel()

	job := testJob()
	job.UserID = uuid.Nil
	reports := &mockReports{}
	msg := &mockMessage{job: job}

	if err := newTestProcessor(reports, &mockPublisher{}).ProcessJob(context.Background(), msg); err == nil {
		t.Fatal("Expected error for job without user")
	}
	if !msg.nacked || msg.requeued {
		t.Errorf("Expected dead-letter nack, got nacked=%v requeued=%v", msg.nacked, msg.requeued)
	}
	if reports.generateCount() != 0 {
		t.Errorf("Expected no generation, got %d", reports.generateCount())
	}
}
