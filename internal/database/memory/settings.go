package memory

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
)

// RatelimitConfigRepository holds the rate limit setting in memory
type RatelimitConfigRepository struct {
	mu  sync.RWMutex
	cfg *models.RatelimitConfig
}

var _ database.RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)

// NewRatelimitConfigRepository creates an unset rate limit setting
func NewRatelimitConfigRepository() *RatelimitConfigRepository {
	return &RatelimitConfigRepository{}
}

// Get returns nil when nothing has been set, like the database repository
func (r *RatelimitConfigRepository) Get(_ context.Context) (*models.RatelimitConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return nil, nil
	}
	c := *r.cfg
	return &c, nil
}

// Set replaces the rate limit setting
func (r *RatelimitConfigRepository) Set(_ context.Context, c *models.RatelimitConfig) error {
	rate, err := database.NormalizeRate(c.Rate)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	stored := models.RatelimitConfig{ConfigKey: models.DefaultSettingKey, Rate: rate, CreatedAt: now, UpdatedAt: now}
	if r.cfg != nil {
		stored.CreatedAt = r.cfg.CreatedAt
	}
	r.cfg = &stored
	return nil
}

// CorsConfigRepository holds the CORS setting in memory
type CorsConfigRepository struct {
	mu  sync.RWMutex
	cfg *models.CorsConfig
}

var _ database.CorsConfigRepositoryInterface = (*CorsConfigRepository)(nil)

// NewCorsConfigRepository creates an unset CORS setting
func NewCorsConfigRepository() *CorsConfigRepository {
	return &CorsConfigRepository{}
}

// Get returns nil when nothing has been set
func (r *CorsConfigRepository) Get(_ context.Context) (*models.CorsConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return nil, nil
	}
	c := *r.cfg
	return &c, nil
}

// Set replaces the CORS setting
func (r *CorsConfigRepository) Set(_ context.Context, c *models.CorsConfig) error {
	stored := *c
	if err := database.NormalizeCorsConfig(&stored); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored.ConfigKey = models.DefaultSettingKey
	stored.UpdatedAt = time.Now().UTC()
	if r.cfg != nil {
		stored.CreatedAt = r.cfg.CreatedAt
	} else {
		stored.CreatedAt = stored.UpdatedAt
	}
	r.cfg = &stored
	return nil
}
