package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportGenerator produces and looks up weekly reports. *ai.ReportService satisfies it.
type ReportGenerator interface {
	GenerateWeekly(ctx context.Context) (*models.Report, error)
	LatestWeekly(ctx context.Context, userID uuid.UUID) (*models.Report, error)
}

var _ ReportGenerator = (*ai.ReportService)(nil)

// ReportProcessor consumes weekly report jobs
type ReportProcessor struct {
	reports   ReportGenerator
	publisher queue.Publisher // For re-enqueueing jobs with delays
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportProcessor creates a new report processor. publisher may be nil, in
// which case failed jobs are requeued by the broker instead of delayed.
func NewReportProcessor(reports ReportGenerator, publisher queue.Publisher, logger *zap.Logger) *ReportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportProcessor{
		reports:   reports,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessJob processes a job based on its type
func (p *ReportProcessor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	switch job.Type {
	case queue.JobTypeWeeklyReport:
		if err := p.processWeeklyReport(ctx, job); err != nil {
			return p.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			p.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *ReportProcessor) processWeeklyReport(ctx context.Context, job *queue.Job) error {
	if job.UserID == uuid.Nil {
		return fmt.Errorf("%w: user_id is required for weekly report job", errPermanent)
	}

	// A report written after the week started means a duplicate job already ran
	latest, err := p.reports.LatestWeekly(ctx, job.UserID)
	switch {
	case err == nil && !job.WeekStart.IsZero() && !latest.CreatedAt.Before(job.WeekStart):
		p.logger.Info("weekly_report_already_exists",
			zap.String("job_id", job.ID.String()),
			zap.String("user_id", job.UserID.String()),
			zap.String("report_id", latest.ID.String()),
		)
		return nil
	case err != nil && !errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("failed to look up latest report: %w", err)
	}

	report, err := p.reports.GenerateWeekly(ai.WithActor(ctx, job.UserID))
	if err != nil {
		return fmt.Errorf("failed to generate weekly report: %w", err)
	}

	p.logger.Info("weekly_report_job_done",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", job.UserID.String()),
		zap.String("report_id", report.ID.String()),
		zap.Int("retry_count", job.RetryCount),
	)
	return nil
}

// errPermanent marks failures that retrying cannot fix
var errPermanent = errors.New("permanent job failure")

// handleJobError decides between a delayed retry, a broker requeue and the DLQ
func (p *ReportProcessor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", job.UserID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	}

	if errors.Is(err, errPermanent) || errors.Is(err, ai.ErrNotConfigured) || errors.Is(err, ai.ErrNoActor) {
		p.logger.Error("weekly_report_job_failed_permanently", fields...)
		p.deadLetter(msg)
		return fmt.Errorf("job %s failed permanently: %w", job.ID, err)
	}

	// Quota errors always get a long delayed retry; retries are not spent on them
	if ai.IsQuotaError(err) {
		delay := ai.GetRetryDelay(err, job.RetryCount)
		p.logger.Warn("weekly_report_job_quota_exceeded", append(fields, zap.Duration("retry_in", delay))...)

		retry := job.Retry(p.now(), delay)
		retry.RetryCount = job.RetryCount
		if p.reenqueue(ctx, msg, retry) {
			return nil
		}
		p.deadLetter(msg)
		return fmt.Errorf("quota exhausted (job %s): %w", job.ID, err)
	}

	if !job.CanRetry() {
		p.logger.Error("weekly_report_job_max_retries", fields...)
		p.deadLetter(msg)
		return fmt.Errorf("job %s exceeded max retries: %w", job.ID, err)
	}

	delay := ai.GetRetryDelay(err, job.RetryCount)
	p.logger.Warn("weekly_report_job_retry",
		append(fields, zap.Duration("retry_in", delay), zap.Bool("rate_limited", ai.IsRateLimitError(err)))...)

	if p.reenqueue(ctx, msg, job.Retry(p.now(), delay)) {
		return nil
	}

	// No publisher: let the broker redeliver right away
	if nackErr := msg.Nack(true); nackErr != nil {
		p.logger.Warn("failed_to_requeue_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job %s requeued: %w", job.ID, err)
}

// reenqueue publishes retry and acks the original message. It reports false
// when there is no publisher or publishing failed; msg is then left unsettled.
func (p *ReportProcessor) reenqueue(ctx context.Context, msg queue.MessageInterface, retry *queue.Job) bool {
	if p.publisher == nil {
		return false
	}
	if err := p.publisher.Enqueue(ctx, retry); err != nil {
		p.logger.Error("failed_to_reenqueue_job",
			zap.String("job_id", retry.ID.String()),
			zap.Error(err),
		)
		return false
	}
	if err := msg.Ack(); err != nil {
		p.logger.Warn("failed_to_ack_reenqueued_job", zap.String("job_id", retry.ID.String()), zap.Error(err))
	}
	return true
}

func (p *ReportProcessor) deadLetter(msg queue.MessageInterface) {
	if err := msg.Nack(false); err != nil {
		p.logger.Warn("failed_to_nack_job", zap.Error(err))
	}
}

// Run consumes jobs from q until ctx is cancelled or the delivery channel closes
func (p *ReportProcessor) Run(ctx context.Context, q queue.JobQueue, prefetch int) error {
	msgs, errs, err := q.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	p.logger.Info("report_processor_started", zap.Int("prefetch", prefetch))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("message channel closed")
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				p.logger.Error("failed_to_process_job",
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
					zap.Error(err),
				)
			}
		}
	}
}
