package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/taskflow/internal/config"
	"github.com/benvon/taskflow/internal/handlers"
	"github.com/benvon/taskflow/internal/logger"
	"github.com/benvon/taskflow/internal/middleware"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/benvon/taskflow/internal/services/auth"
	"github.com/benvon/taskflow/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// settingsReloadInterval is how often CORS and rate limit settings are re-read
const settingsReloadInterval = time.Minute

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for model request logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(telemetry.APIServiceName, logger.ParseFormat(cfg.LogFormat), debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	err = run(cfg, zapLogger, debugMode)
	_ = logger.Sync(zapLogger)
	if err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("memory_mode", cfg.MemoryMode()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if cfg.OTELEnabled && cfg.OTELEndpoint == "" {
		zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
	}
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTELEnabled && cfg.OTELEndpoint != "",
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: telemetry.APIServiceName,
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

	st, err := openStores(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	if cfg.JWTSecretGenerated {
		zapLogger.Warn("using_ephemeral_jwt_secret",
			zap.String("detail", "tokens become invalid on restart; set JWT_SECRET to keep them"),
		)
	}
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, auth.WithIssuer(telemetry.APIServiceName))
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	healthChecker := handlers.NewHealthChecker()
	if st.ping != nil {
		healthChecker.AddCheck("database", st.ping)
	}

	// Redis is optional: without it rate limits are tracked per process
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("redis_not_reachable", zap.Error(err))
		} else {
			zapLogger.Info("connected_to_redis")
		}
		healthChecker.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		return err
	}

	// RabbitMQ is optional here; the server only reports its health
	if cfg.QueueEnabled() {
		jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("failed_to_connect_to_rabbitmq", zap.Error(err))
		} else {
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := jobQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			healthChecker.AddCheck("rabbitmq", jobQueue.HealthCheck)
		}
	}

	// Chat stays registered without a model key and answers 503
	var chatAgent handlers.ChatRunner
	var reporter handlers.WeeklyReporter
	modelClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:      cfg.OpenAIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AIRequestTimeout,
		Logger:      zapLogger,
		DebugMode:   debugMode,
	})
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		zapLogger.Warn("ai_not_configured_chat_disabled")
	case err != nil:
		return fmt.Errorf("failed to create model client: %w", err)
	default:
		toolset := ai.NewToolset(st.tasks,
			ai.WithLocation(cfg.ReportLocation),
			ai.WithToolLogger(zapLogger),
		)
		agent := ai.NewAgent(modelClient, toolset,
			ai.WithMaxToolRounds(cfg.AIMaxToolRounds),
			ai.WithAgentLogger(zapLogger),
			ai.WithMetrics(ai.DefaultMetrics()),
		)
		chatAgent = agent
		reporter = ai.NewReportService(agent, st.reports, zapLogger)
		zapLogger.Info("initialized_model_client",
			zap.String("model", modelClient.Model()),
			zap.Int("max_tool_rounds", cfg.AIMaxToolRounds),
		)
	}

	authenticator := middleware.NewAuthenticator(tokens, st.users, zapLogger)
	userHandler := handlers.NewUserHandler(st.users, tokens, authenticator, zapLogger)
	taskHandler := handlers.NewTaskHandler(st.tasks, zapLogger)
	chatHandler := handlers.NewChatHandler(chatAgent, reporter, zapLogger)

	corsReloader := middleware.NewCORSReloader(st.cors, cfg.FrontendURL, zapLogger, settingsReloadInterval)
	rateLimitReloader, err := middleware.NewRateLimitReloader(limiterStore, st.ratelimit, middleware.DefaultRatelimitRate, zapLogger, settingsReloadInterval)
	if err != nil {
		return fmt.Errorf("failed to create rate limit reloader: %w", err)
	}
	rateLimitMW := rateLimitReloader.Middleware()

	r := mux.NewRouter()

	// Middleware registered first wraps everything registered after it
	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		r.Use(telemetry.Middleware(telemetry.APIServiceName))
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	openAPIHandler, err := handlers.NewOpenAPIHandler(filepath.Join("api", "openapi", "openapi.yaml"))
	if err != nil {
		zapLogger.Warn("openapi_spec_unavailable", zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	publicUsers := apiRouter.PathPrefix("/users").Subrouter()
	publicUsers.Use(rateLimitMW)
	publicUsers.Use(middleware.Timeout(cfg.RequestTimeout))
	userHandler.RegisterPublicRoutes(publicUsers)

	users := apiRouter.PathPrefix("/users").Subrouter()
	users.Use(authenticator.Middleware)
	users.Use(rateLimitMW)
	users.Use(middleware.Timeout(cfg.RequestTimeout))
	userHandler.RegisterRoutes(users)

	tasks := apiRouter.PathPrefix("/tasks").Subrouter()
	tasks.Use(authenticator.Middleware)
	tasks.Use(rateLimitMW)
	tasks.Use(middleware.Timeout(cfg.RequestTimeout))
	taskHandler.RegisterRoutes(tasks)

	// Agent runs span several model calls and get their own budget. Chat
	// answers provider failures in-band, so the deadline only cancels the run.
	chat := apiRouter.PathPrefix("/chat").Subrouter()
	chat.Use(authenticator.Middleware)
	chat.Use(rateLimitMW)
	chat.Use(middleware.Deadline(cfg.ChatRequestTimeout))
	chatHandler.RegisterRoutes(chat)

	// Preflight requests; the CORS middleware has already written the headers
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ChatRequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	zapLogger.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zapLogger.Info("server_exited")
	return nil
}
