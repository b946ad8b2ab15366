package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskPriority is how urgent a task is
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

const (
	// MaxTaskTitleLength is the longest title accepted, in characters
	MaxTaskTitleLength = 200
	// MaxTaskDescriptionLength is the longest description accepted, in characters
	MaxTaskDescriptionLength = 2000
)

// TaskPriorities lists every priority in display order.
var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent}

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCancelled}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	for _, v := range TaskPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Task represents a task owned by a single user
type Task struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewTask returns a task for userID with default priority and status applied.
func NewTask(userID uuid.UUID, title string) *Task {
	return &Task{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    title,
		Priority: TaskPriorityMedium,
		Status:   TaskStatusTodo,
	}
}

// TaskPatch holds the fields of a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *TaskPriority
	Status      *TaskStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil
}

// Apply copies the set fields of p onto t. Owner and timestamps are untouched.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		desc := *p.Description
		t.Description = &desc
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}

// TaskFilter narrows a task listing. Nil fields match everything.
type TaskFilter struct {
	Status   *TaskStatus
	Priority *TaskPriority
	// UpdatedSince restricts results to tasks updated at or after this time
	UpdatedSince *time.Time
}

// Matches reports whether t satisfies the filter.
func (f TaskFilter) Matches(t *Task) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.UpdatedSince != nil && t.UpdatedAt.Before(*f.UpdatedSince) {
		return false
	}
	return true
}

// TaskStats summarizes a user's tasks
type TaskStats struct {
	Total      int                  `json:"total"`
	ByStatus   map[TaskStatus]int   `json:"by_status"`
	ByPriority map[TaskPriority]int `json:"by_priority"`
}

// ComputeTaskStats counts tasks by status and priority.
func ComputeTaskStats(tasks []*Task) *TaskStats {
	stats := &TaskStats{
		ByStatus:   make(map[TaskStatus]int),
		ByPriority: make(map[TaskPriority]int),
	}
	for _, t := range tasks {
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
	}
	return stats
}
