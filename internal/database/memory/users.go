package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
)

// UserRepository is a map-backed user store with unique username and email indexes
type UserRepository struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]models.User
	usernameIdx map[string]uuid.UUID
	emailIdx    map[string]uuid.UUID
}

var _ database.UserRepositoryInterface = (*UserRepository)(nil)

// NewUserRepository creates an empty user store
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:       make(map[uuid.UUID]models.User),
		usernameIdx: make(map[string]uuid.UUID),
		emailIdx:    make(map[string]uuid.UUID),
	}
}

// Create stores a user. Username is checked before email.
func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.usernameIdx[user.Username]; exists {
		return &database.DuplicateError{Field: "username"}
	}
	if _, exists := r.emailIdx[user.Email]; exists {
		return &database.DuplicateError{Field: "email"}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = *user
	r.usernameIdx[user.Username] = user.ID
	r.emailIdx[user.Email] = user.ID
	return nil
}

func (r *UserRepository) get(id uuid.UUID, ok bool) (*models.User, error) {
	if !ok {
		return nil, fmt.Errorf("user not found: %w", database.ErrNotFound)
	}
	u, found := r.users[id]
	if !found {
		return nil, fmt.Errorf("user not found: %w", database.ErrNotFound)
	}
	return &u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id, true)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.usernameIdx[username]
	return r.get(id, ok)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.emailIdx[email]
	return r.get(id, ok)
}

// ListIDs returns every user ID in creation order
func (r *UserRepository) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })

	ids := make([]uuid.UUID, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids, nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found: %w", database.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}
