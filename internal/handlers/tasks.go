package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	tasks  database.TaskRepositoryInterface
	logger *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks database.TaskRepositoryInterface, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{tasks: tasks, logger: logger}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix (e.g., from apiRouter.PathPrefix("/tasks"))
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	// Registered before /{id} so "stats" is not taken for an id
	r.HandleFunc("/stats/summary", h.GetStats).Methods("GET")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH", "PUT")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty" validate:"omitempty,task_priority"`
	Status      string  `json:"status,omitempty" validate:"omitempty,task_status"`
}

// UpdateTaskRequest represents a partial task update. Omitted fields are unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty" validate:"omitempty,task_priority"`
	Status      *string `json:"status,omitempty" validate:"omitempty,task_status"`
}

// ListTasksResponse represents the response for listing tasks
type ListTasksResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Total int            `json:"total"`
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeEnumPtr(s *string) {
	if s != nil {
		*s = normalizeEnum(*s)
	}
}

// ListTasks lists tasks for the authenticated user, newest first
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var filter models.TaskFilter
	if s := normalizeEnum(r.URL.Query().Get("status")); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		status := models.TaskStatus(s)
		filter.Status = &status
	}
	if p := normalizeEnum(r.URL.Query().Get("priority")); p != "" {
		if err := validation.ValidateTaskPriority(p); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		priority := models.TaskPriority(p)
		filter.Priority = &priority
	}

	tasks, err := h.tasks.ListByUser(r.Context(), user.ID, filter)
	if err != nil {
		h.logger.Error("failed_to_list_tasks", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{Tasks: tasks, Total: len(tasks)})
}

// CreateTask creates a new task owned by the authenticated user
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	req.Priority = normalizeEnum(req.Priority)
	req.Status = normalizeEnum(req.Status)
	if !validateRequest(w, req) {
		return
	}

	title, err := validation.ValidateTitle(req.Title)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	task := models.NewTask(user.ID, title)
	if req.Description != nil {
		description, err := validation.ValidateDescription(*req.Description)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		if description != "" {
			task.Description = &description
		}
	}
	if req.Priority != "" {
		task.Priority = models.TaskPriority(req.Priority)
	}
	if req.Status != "" {
		task.Status = models.TaskStatus(req.Status)
	}

	if err := h.tasks.Create(r.Context(), task); err != nil {
		h.logger.Error("failed_to_create_task", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// taskID parses the {id} path variable. Unparseable ids answer 404 like any
// other task the caller cannot see.
func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) respondStoreError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, database.ErrNotFound) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}
	h.logger.Error("task_store_failed", zap.String("action", action), zap.Error(err))
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to "+action+" task")
}

// GetTask retrieves a task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByIDForUser(r.Context(), id, user.ID)
	if err != nil {
		h.respondStoreError(w, err, "retrieve")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask applies the provided fields to a task
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	normalizeEnumPtr(req.Priority)
	normalizeEnumPtr(req.Status)
	if !validateRequest(w, req) {
		return
	}

	var patch models.TaskPatch
	if req.Title != nil {
		title, err := validation.ValidateTitle(*req.Title)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		patch.Title = &title
	}
	if req.Description != nil {
		description, err := validation.ValidateDescription(*req.Description)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		patch.Description = &description
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if patch.IsEmpty() {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Provide at least one of title, description, priority, status")
		return
	}

	task, err := h.tasks.UpdateFields(r.Context(), id, user.ID, patch)
	if err != nil {
		h.respondStoreError(w, err, "update")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), id, user.ID); err != nil {
		h.respondStoreError(w, err, "delete")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats returns task counts by status and priority
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	stats, err := h.tasks.Stats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed_to_compute_task_stats", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to compute task statistics")
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
