package database

import (
	"context"

	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
)

// TaskRepositoryInterface defines the owner-scoped task operations.
// Implementations must return ErrNotFound for tasks owned by another user.
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter models.TaskFilter) ([]*models.Task, error)
	UpdateFields(ctx context.Context, id, userID uuid.UUID, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	Stats(ctx context.Context, userID uuid.UUID) (*models.TaskStats, error)
}

// UserRepositoryInterface defines the interface for user repository operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// ReportRepositoryInterface defines the interface for report repository operations
type ReportRepositoryInterface interface {
	Create(ctx context.Context, report *models.Report) error
	GetLatest(ctx context.Context, userID uuid.UUID, kind models.ReportKind) (*models.Report, error)
}

// RatelimitConfigRepositoryInterface is consumed by the rate limit reloader and CLI
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// CorsConfigRepositoryInterface is consumed by the CORS reloader and CLI
type CorsConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
	Set(ctx context.Context, c *models.CorsConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface            = (*TaskRepository)(nil)
	_ UserRepositoryInterface            = (*UserRepository)(nil)
	_ ReportRepositoryInterface          = (*ReportRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
	_ CorsConfigRepositoryInterface      = (*CorsConfigRepository)(nil)
)
