package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewWeeklyReportJob(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	weekStart := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	job := NewWeeklyReportJob(userID, weekStart)

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeWeeklyReport {
		t.Errorf("Expected job type to be %s, got %s", JobTypeWeeklyReport, job.Type)
	}
	if job.UserID != userID {
		t.Errorf("Expected user ID to be %s, got %s", userID, job.UserID)
	}
	if !job.WeekStart.Equal(weekStart) {
		t.Errorf("Expected week start %v, got %v", weekStart, job.WeekStart)
	}
	if job.NotAfter == nil || !job.NotAfter.Equal(weekStart.AddDate(0, 0, 7)) {
		t.Errorf("Expected expiry at the end of the week, got %v", job.NotAfter)
	}
	if job.RetryCount != 0 {
		t.Errorf("Expected retry count to be 0, got %d", job.RetryCount)
	}
	if job.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected max retries to be %d, got %d", DefaultMaxRetries, job.MaxRetries)
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		job     *Job
		want    bool
		expired bool
	}{
		{name: "no time constraints", job: &Job{}, want: true},
		{name: "not before in past", job: &Job{NotBefore: &past}, want: true},
		{name: "not before in future", job: &Job{NotBefore: &future}, want: false},
		{name: "not after in future", job: &Job{NotAfter: &future}, want: true},
		{name: "not after in past", job: &Job{NotAfter: &past}, want: false, expired: true},
		{name: "within window", job: &Job{NotBefore: &past, NotAfter: &future}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.ShouldProcess(now); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
			if got := tt.job.IsExpired(now); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	job := NewWeeklyReportJob(uuid.New(), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))

	for i := 1; i <= DefaultMaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i)
		}
		next := job.Retry(now, 30*time.Second)
		if next.RetryCount != i {
			t.Errorf("Expected retry count %d, got %d", i, next.RetryCount)
		}
		if next.ID != job.ID {
			t.Error("Expected retried job to keep its ID")
		}
		if next.NotBefore == nil || !next.NotBefore.Equal(now.Add(30*time.Second)) {
			t.Errorf("Expected not_before 30s out, got %v", next.NotBefore)
		}
		if next.ShouldProcess(now) {
			t.Error("Expected retried job to wait for its delay")
		}
		job = next
	}
	if job.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}
}

func TestRabbitMQQueue_Publishing(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	weekStart := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		delayedAvailable bool
		notBefore        *time.Time
		wantExchange     string
		wantDelay        bool
	}{
		{name: "immediate", delayedAvailable: true, wantExchange: DefaultExchangeName},
		{name: "delayed retry", delayedAvailable: true, notBefore: ptrTime(now.Add(time.Minute)), wantExchange: DefaultDelayedExchangeName, wantDelay: true},
		{name: "delay without plugin", delayedAvailable: false, notBefore: ptrTime(now.Add(time.Minute)), wantExchange: DefaultExchangeName},
		{name: "past not before", delayedAvailable: true, notBefore: ptrTime(now.Add(-time.Minute)), wantExchange: DefaultExchangeName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := &RabbitMQQueue{
				exchangeName:        DefaultExchangeName,
				delayedExchangeName: DefaultDelayedExchangeName,
				delayedAvailable:    tt.delayedAvailable,
			}
			job := NewWeeklyReportJob(uuid.New(), weekStart)
			job.NotBefore = tt.notBefore

			exchange, msg, err := q.publishing(job, now)
			if err != nil {
				t.Fatalf("publishing failed: %v", err)
			}
			if exchange != tt.wantExchange {
				t.Errorf("Expected exchange %s, got %s", tt.wantExchange, exchange)
			}
			if _, ok := msg.Headers["x-delay"]; ok != tt.wantDelay {
				t.Errorf("Expected x-delay header %v, got %v", tt.wantDelay, msg.Headers)
			}
			// Week ends Mar 10 00:00, 4.5 days after now
			if msg.Expiration != "388800000" {
				t.Errorf("Expected expiration 388800000ms, got %q", msg.Expiration)
			}
			if msg.MessageId != job.ID.String() || msg.Type != string(JobTypeWeeklyReport) {
				t.Errorf("Unexpected message metadata %q %q", msg.MessageId, msg.Type)
			}

			var decoded Job
			if err := json.Unmarshal(msg.Body, &decoded); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if decoded.UserID != job.UserID || !decoded.WeekStart.Equal(weekStart) {
				t.Errorf("Body does not carry the job: %+v", decoded)
			}
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
