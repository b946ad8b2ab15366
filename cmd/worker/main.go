package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/taskflow/internal/config"
	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/logger"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/benvon/taskflow/internal/telemetry"
	"github.com/benvon/taskflow/internal/workers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for model request logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(telemetry.WorkerServiceName, logger.ParseFormat(cfg.LogFormat), debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	err = run(cfg, zapLogger, debugMode)
	_ = logger.Sync(zapLogger)
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) error {
	if cfg.MemoryMode() {
		return errors.New("the worker needs a PostgreSQL DATABASE_URL; memory mode is single-process")
	}
	if !cfg.QueueEnabled() {
		return errors.New("RABBITMQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_model", cfg.AIModel),
		zap.String("report_timezone", cfg.ReportLocation.String()),
		zap.String("report_weekday", cfg.ReportWeekday.String()),
		zap.Int("report_hour", cfg.ReportHour),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTELEnabled && cfg.OTELEndpoint != "",
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: telemetry.WorkerServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	taskRepo := database.NewTaskRepository(db)
	userRepo := database.NewUserRepository(db)
	reportRepo := database.NewReportRepository(db)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	modelClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:      cfg.OpenAIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AIRequestTimeout,
		Logger:      zapLogger,
		DebugMode:   debugMode,
	})
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	toolset := ai.NewToolset(taskRepo,
		ai.WithLocation(cfg.ReportLocation),
		ai.WithToolLogger(zapLogger),
	)
	agent := ai.NewAgent(modelClient, toolset,
		ai.WithMaxToolRounds(cfg.AIMaxToolRounds),
		ai.WithAgentLogger(zapLogger),
		ai.WithMetrics(ai.DefaultMetrics()),
	)
	reports := ai.NewReportService(agent, reportRepo, zapLogger)

	processor := workers.NewReportProcessor(reports, jobQueue, zapLogger)
	scheduler := workers.NewScheduler(userRepo, reports, jobQueue, workers.ScheduleConfig{
		Location: cfg.ReportLocation,
		Weekday:  cfg.ReportWeekday,
		Hour:     cfg.ReportHour,
	}, zapLogger)
	dlqGC := queue.NewGarbageCollector(jobQueue, queue.DefaultGCInterval, queue.DefaultDLQRetention, zapLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx, jobQueue, cfg.RabbitMQPrefetch)
	})
	g.Go(func() error {
		return scheduler.Run(gctx, cfg.ReportCheckInterval)
	})
	g.Go(func() error {
		if err := dlqGC.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("dlq garbage collector stopped: %w", err)
		}
		return nil
	})

	zapLogger.Info("worker_started")
	err = g.Wait()
	zapLogger.Info("worker_stopped")
	return err
}
