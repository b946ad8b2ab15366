package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultGCInterval is how often the dead letter queue is swept
	DefaultGCInterval = 6 * time.Hour
	// DefaultDLQRetention keeps dead-lettered report jobs for two report weeks
	DefaultDLQRetention = 14 * 24 * time.Hour
)

// GarbageCollector runs periodic DLQ purges, removing messages older than retention.
type GarbageCollector struct {
	dlqPurger DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a new garbage collector. purger may be nil, in
// which case every sweep is a no-op.
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	if retention <= 0 {
		retention = DefaultDLQRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GarbageCollector{
		dlqPurger: purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start runs the GC loop until ctx is cancelled.
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := gc.collect(ctx); err != nil {
				gc.logger.Warn("dlq_gc_failed", zap.Error(err))
			}
		}
	}
}

// collect purges DLQ messages older than retention.
func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.dlqPurger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	n, err := gc.dlqPurger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return fmt.Errorf("DLQ purge: %w", err)
	}
	if n > 0 {
		gc.logger.Info("dlq_gc_purged",
			zap.Int("purged", n),
			zap.Duration("retention", gc.retention),
		)
	}
	return nil
}
