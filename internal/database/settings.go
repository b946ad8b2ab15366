package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/taskflow/internal/models"
	"github.com/ulule/limiter/v3"
)

// NormalizeRate trims rate and checks it parses as a limiter rate
func NormalizeRate(rate string) (string, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return "", fmt.Errorf("rate cannot be empty")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", fmt.Errorf("invalid rate %q (expected e.g. 20-S, 300-M, 1000-H): %w", rate, err)
	}
	return rate, nil
}

// NormalizeCorsConfig dedupes and trims the origin list and rejects bad values
func NormalizeCorsConfig(c *models.CorsConfig) error {
	origins := AllowedOriginsSlice(c.AllowedOrigins)
	if len(origins) == 0 {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	for _, o := range origins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("invalid origin %q: must start with http:// or https://", o)
		}
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}
	c.AllowedOrigins = strings.Join(origins, ",")
	return nil
}

// AllowedOriginsSlice splits a comma-separated origin list, dropping blanks and duplicates
func AllowedOriginsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// RatelimitConfigRepository stores the API rate limit
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get returns the stored rate limit, or nil when none has been set
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, models.DefaultSettingKey)
	c := &models.RatelimitConfig{}
	if err := row.Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(mapError(err, nil), ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ratelimit config: %w", err)
	}
	return c, nil
}

// Set upserts the rate limit after validating its format
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate, err := NormalizeRate(c.Rate)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, models.DefaultSettingKey, rate, now, now)
	if err != nil {
		return fmt.Errorf("failed to set ratelimit config: %w", err)
	}
	return nil
}

// CorsConfigRepository stores the CORS origin list
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get returns the stored CORS config, or nil when none has been set
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, models.DefaultSettingKey)
	c := &models.CorsConfig{}
	err := row.Scan(
		&c.ConfigKey,
		&c.AllowedOrigins,
		&c.AllowCredentials,
		&c.MaxAge,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(mapError(err, nil), ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cors config: %w", err)
	}
	return c, nil
}

// Set upserts the CORS config after normalizing the origin list
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	normalized := *c
	if err := NormalizeCorsConfig(&normalized); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, models.DefaultSettingKey, normalized.AllowedOrigins, normalized.AllowCredentials, normalized.MaxAge, now, now)
	if err != nil {
		return fmt.Errorf("failed to set cors config: %w", err)
	}
	return nil
}
