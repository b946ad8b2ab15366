package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// DefaultRatelimitRate applies until a ratelimit_config setting exists
const DefaultRatelimitRate = "20-S"

const ratelimitKeyPrefix = "taskflow_ratelimit"

// NewLimiterStore returns a Redis-backed store shared across replicas, or an
// in-process store when redisClient is nil
func NewLimiterStore(redisClient *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: ratelimitKeyPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval}
	if redisClient == nil {
		return memorystore.NewStoreWithOptions(opts), nil
	}
	store, err := redisstore.NewStoreWithOptions(redisClient, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

// RateLimitReloader applies ulule/limiter with the rate re-read from the ratelimit_config setting.
// Requests are keyed by client IP.
type RateLimitReloader struct {
	store       limiter.Store
	repo        database.RatelimitConfigRepositoryInterface
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	current     atomic.Pointer[stdlibmw.Middleware]
	rate        atomic.Value // string
}

// NewRateLimitReloader creates the reloader and performs the first load
func NewRateLimitReloader(store limiter.Store, repo database.RatelimitConfigRepositoryInterface, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if defaultRate == "" {
		defaultRate = DefaultRatelimitRate
	}
	if _, err := limiter.NewRateFromFormatted(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
	r.load(context.Background())
	return r, nil
}

// Middleware wraps next with the current limit. It may be applied to several routers.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.current.Load().Handler(next).ServeHTTP(w, req)
		})
	}
}

// Start runs the reload loop until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
	runReloadLoop(ctx, r.interval, r.load)
}

// Rate returns the formatted rate currently in force
func (r *RateLimitReloader) Rate() string {
	s, _ := r.rate.Load().(string)
	return s
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.defaultRate
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_using_previous",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
		if r.current.Load() != nil {
			return
		}
	case cfg != nil && cfg.Rate != "":
		rateStr = cfg.Rate
	default:
		if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		rateStr = r.defaultRate
		rate, _ = limiter.NewRateFromFormatted(rateStr) // validated in NewRateLimitReloader
	}
	if rateStr == r.Rate() {
		return
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded, retry later", r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			r.log.Error("rate_limiter_store_error", zap.Error(err))
			respondErrorJSON(w, req, http.StatusInternalServerError, "Internal Server Error", "Rate limiter unavailable", r.log)
		}),
	)
	r.current.Store(mw)
	r.rate.Store(rateStr)
	r.log.Info("ratelimit_config_loaded", zap.String("rate", rateStr))
}
