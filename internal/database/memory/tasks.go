// Package memory provides in-process implementations of the database
// repositories. They back the server in memory:// mode and the tests.
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

// Clock returns the current time
type Clock func() time.Time

// TaskRepository is a map-backed task store
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]models.Task
	now   Clock
}

var _ database.TaskRepositoryInterface = (*TaskRepository)(nil)

// NewTaskRepository creates an empty task store. A nil clock uses time.Now.
func NewTaskRepository(now Clock) *TaskRepository {
	if now == nil {
		now = time.Now
	}
	return &TaskRepository{tasks: make(map[uuid.UUID]models.Task), now: now}
}

func copyTask(t models.Task) *models.Task {
	if t.Description != nil {
		desc := *t.Description
		t.Description = &desc
	}
	return &t
}

// Create stores the task and fills in its timestamps
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if _, exists := r.tasks[task.ID]; exists {
		return fmt.Errorf("failed to create task: %w", database.ErrDuplicate)
	}
	now := r.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = *copyTask(*task)
	return nil
}

// GetByIDForUser returns the task only when owned by userID
func (r *TaskRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("task not found: %w", database.ErrNotFound)
	}
	return copyTask(t), nil
}

// ListByUser returns the user's tasks newest first
func (r *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter models.TaskFilter) ([]*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Task
	for _, t := range r.tasks {
		if t.UserID != userID || !filter.Matches(&t) {
			continue
		}
		out = append(out, copyTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateFields applies patch under the write lock when the task is owned by userID
func (r *TaskRepository) UpdateFields(ctx context.Context, id, userID uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("no fields to update")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, fmt.Errorf("task not found: %w", database.ErrNotFound)
	}
	patch.Apply(&t)
	t.UpdatedAt = r.now().UTC()
	r.tasks[id] = t
	return copyTask(t), nil
}

// Delete removes the task when owned by userID
func (r *TaskRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("task not found: %w", database.ErrNotFound)
	}
	delete(r.tasks, id)
	return nil
}

// Stats counts the user's tasks
func (r *TaskRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.TaskStats, error) {
	tasks, err := r.ListByUser(ctx, userID, models.TaskFilter{})
	if err != nil {
		return nil, err
	}
	return models.ComputeTaskStats(tasks), nil
}
