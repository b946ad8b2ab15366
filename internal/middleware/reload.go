package middleware

import (
	"context"
	"time"
)

// DefaultReloadInterval is how often runtime settings are re-read
const DefaultReloadInterval = time.Minute

// runReloadLoop calls load every interval until ctx is cancelled
func runReloadLoop(ctx context.Context, interval time.Duration, load func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load(ctx)
		}
	}
}
