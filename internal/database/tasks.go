package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
)

const taskColumns = `id, user_id, title, description, priority, status, created_at, updated_at`

// TaskRepository handles task database operations. Every read and write
// is scoped to the owning user in the statement itself.
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Create inserts a new task and fills in its timestamps
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, user_id, title, description, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		now,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByIDForUser retrieves a task by ID if it belongs to userID.
// A task owned by someone else is reported as ErrNotFound.
func (r *TaskRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if mapped := mapError(err, nil); errors.Is(mapped, ErrNotFound) {
			return nil, fmt.Errorf("task not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListByUser retrieves the user's tasks newest first, narrowed by filter
func (r *TaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter models.TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}
	argIndex := 2

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(*filter.Status))
		argIndex++
	}
	if filter.Priority != nil {
		query += fmt.Sprintf(" AND priority = $%d", argIndex)
		args = append(args, string(*filter.Priority))
		argIndex++
	}
	if filter.UpdatedSince != nil {
		query += fmt.Sprintf(" AND updated_at >= $%d", argIndex)
		args = append(args, *filter.UpdatedSince)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateFields applies patch to the task in a single statement when it is
// owned by userID, always bumping updated_at. Ownership mismatch and absence
// both return ErrNotFound.
func (r *TaskRepository) UpdateFields(ctx context.Context, id, userID uuid.UUID, patch models.TaskPatch) (*models.Task, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("no fields to update")
	}

	sets := []string{}
	args := []any{id, userID}
	argIndex := 3
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Priority != nil {
		add("priority", string(*patch.Priority))
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	add("updated_at", time.Now().UTC())

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND user_id = $2 RETURNING ` + taskColumns

	task, err := scanTask(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if mapped := mapError(err, nil); errors.Is(mapped, ErrNotFound) {
			return nil, fmt.Errorf("task not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete removes the task when it is owned by userID
func (r *TaskRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %w", ErrNotFound)
	}

	return nil
}

// Stats counts the user's tasks by status and priority
func (r *TaskRepository) Stats(ctx context.Context, userID uuid.UUID) (*models.TaskStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, priority, COUNT(*)
		FROM tasks
		WHERE user_id = $1
		GROUP BY status, priority
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := &models.TaskStats{
		ByStatus:   make(map[models.TaskStatus]int),
		ByPriority: make(map[models.TaskPriority]int),
	}
	for rows.Next() {
		var status models.TaskStatus
		var priority models.TaskPriority
		var count int
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, fmt.Errorf("failed to scan task stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task stats: %w", err)
	}

	return stats, nil
}
