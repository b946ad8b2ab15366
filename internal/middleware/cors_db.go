package middleware

import (
	"context"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/request"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const (
	defaultCORSOrigin = "http://localhost:3000"
	defaultCORSMaxAge = 86400
)

// CORSReloader applies rs/cors with options re-read from the cors_config setting.
// FRONTEND_URL is used until a setting exists.
type CORSReloader struct {
	repo     database.CorsConfigRepositoryInterface
	fallback string
	log      *zap.Logger
	interval time.Duration
	current  atomic.Pointer[cors.Cors]
	origins  atomic.Pointer[[]string]
}

// NewCORSReloader creates the reloader and performs the first load
func NewCORSReloader(repo database.CorsConfigRepositoryInterface, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	r := &CORSReloader{
		repo:     repo,
		fallback: frontendURLFallback,
		log:      log,
		interval: reloadInterval,
	}
	r.load(context.Background())
	return r
}

// Middleware wraps next with the current CORS policy. It may be applied to several routers.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.current.Load().Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *CORSReloader) Start(ctx context.Context) {
	runReloadLoop(ctx, r.interval, r.load)
}

// AllowedOrigins returns the origins currently in force
func (r *CORSReloader) AllowedOrigins() []string {
	if o := r.origins.Load(); o != nil {
		return slices.Clone(*o)
	}
	return nil
}

func (r *CORSReloader) load(ctx context.Context) {
	cfg, err := r.repo.Get(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_cors_config_using_previous", zap.Error(err))
		if r.current.Load() != nil {
			return
		}
	}
	opts := r.options(cfg)

	if prev := r.origins.Load(); prev == nil || !slices.Equal(*prev, opts.AllowedOrigins) {
		r.log.Info("cors_config_loaded",
			zap.Strings("allowed_origins", opts.AllowedOrigins),
			zap.Bool("allow_credentials", opts.AllowCredentials),
		)
	}
	origins := opts.AllowedOrigins
	r.origins.Store(&origins)
	r.current.Store(cors.New(opts))
}

func (r *CORSReloader) options(cfg *models.CorsConfig) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", request.RequestIDHeader},
		ExposedHeaders: []string{request.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	}
	if cfg == nil {
		opts.AllowedOrigins = database.AllowedOriginsSlice(r.fallback)
		opts.AllowCredentials = true
		opts.MaxAge = defaultCORSMaxAge
	} else {
		opts.AllowedOrigins = database.AllowedOriginsSlice(cfg.AllowedOrigins)
		opts.AllowCredentials = cfg.AllowCredentials
		opts.MaxAge = cfg.MaxAge
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{defaultCORSOrigin}
	}
	return opts
}
