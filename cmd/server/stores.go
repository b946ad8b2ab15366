package main

import (
	"context"
	"fmt"

	"github.com/benvon/taskflow/internal/config"
	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/database/memory"
	"go.uber.org/zap"
)

// stores bundles the repositories the server needs, backed either by
// PostgreSQL or by the in-process implementation
type stores struct {
	tasks     database.TaskRepositoryInterface
	users     database.UserRepositoryInterface
	reports   database.ReportRepositoryInterface
	ratelimit database.RatelimitConfigRepositoryInterface
	cors      database.CorsConfigRepositoryInterface

	// ping is nil in memory mode
	ping  func(ctx context.Context) error
	close func() error
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.MemoryMode() {
		logger.Warn("using_in_memory_stores",
			zap.String("detail", "data is lost on restart and not shared between replicas"),
		)
		return &stores{
			tasks:     memory.NewTaskRepository(nil),
			users:     memory.NewUserRepository(),
			reports:   memory.NewReportRepository(),
			ratelimit: memory.NewRatelimitConfigRepository(),
			cors:      memory.NewCorsConfigRepository(),
			close:     func() error { return nil },
		}, nil
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("connected_to_database")

	return &stores{
		tasks:     database.NewTaskRepository(db),
		users:     database.NewUserRepository(db),
		reports:   database.NewReportRepository(db),
		ratelimit: database.NewRatelimitConfigRepository(db),
		cors:      database.NewCorsConfigRepository(db),
		ping:      db.PingContext,
		close:     db.Close,
	}, nil
}
