package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/validation"
	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"
)

// ToolName identifies one tool in the closed tool set
type ToolName string

const (
	ToolCreateTask           ToolName = "create_task"
	ToolListTasks            ToolName = "list_tasks"
	ToolUpdateTask           ToolName = "update_task"
	ToolGetTaskSummary       ToolName = "get_task_summary"
	ToolGetCompletedThisWeek ToolName = "get_completed_tasks_this_week"
)

// maxEchoLength bounds model-supplied strings echoed back in tool results
const maxEchoLength = 64

// Canonical tool texts
const (
	EmptyListMessage           = "No tasks found matching the criteria."
	EmptySummaryMessage        = "You don't have any tasks yet."
	NoCompletedThisWeekMessage = "No tasks completed this week."
)

// ToolOutcome classifies a tool result for metrics and logs
type ToolOutcome string

const (
	OutcomeOK          ToolOutcome = "ok"
	OutcomeNotFound    ToolOutcome = "not_found"
	OutcomeInvalidArgs ToolOutcome = "invalid_args"
	OutcomeUnknownTool ToolOutcome = "unknown_tool"
	OutcomeError       ToolOutcome = "error"
)

// ToolResult is the text handed back to the model plus its classification
type ToolResult struct {
	Content string
	Outcome ToolOutcome
}

// TaskStore is the owner-scoped task storage the tools operate on
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter models.TaskFilter) ([]*models.Task, error)
	UpdateFields(ctx context.Context, id, userID uuid.UUID, patch models.TaskPatch) (*models.Task, error)
}

var _ TaskStore = (database.TaskRepositoryInterface)(nil)

// Toolset executes model tool calls against the task store on behalf of the
// actor bound to the call's context
type Toolset struct {
	tasks    TaskStore
	now      func() time.Time
	location *time.Location
	logger   *zap.Logger
}

// ToolsetOption configures a Toolset
type ToolsetOption func(*Toolset)

// WithClock sets the clock used for the weekly window
func WithClock(now func() time.Time) ToolsetOption {
	return func(t *Toolset) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLocation sets the time zone the week starts in
func WithLocation(loc *time.Location) ToolsetOption {
	return func(t *Toolset) {
		if loc != nil {
			t.location = loc
		}
	}
}

// WithToolLogger sets the logger for store failures
func WithToolLogger(logger *zap.Logger) ToolsetOption {
	return func(t *Toolset) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewToolset creates the tool set over tasks
func NewToolset(tasks TaskStore, opts ...ToolsetOption) *Toolset {
	t := &Toolset{
		tasks:    tasks,
		now:      time.Now,
		location: time.UTC,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Specs describes every tool to the model
func (t *Toolset) Specs() []ToolSpec {
	priorities := validation.PriorityValues()
	statuses := validation.StatusValues()

	return []ToolSpec{
		{
			Name:        string(ToolCreateTask),
			Description: "Create a new task for the current user. The task starts with status todo.",
			Parameters: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": fmt.Sprintf("Task title (required, 1-%d characters)", models.MaxTaskTitleLength),
					},
					"description": map[string]any{
						"type":        "string",
						"description": fmt.Sprintf("Optional task description (up to %d characters)", models.MaxTaskDescriptionLength),
					},
					"priority": map[string]any{
						"type":        "string",
						"enum":        enumValues(priorities),
						"description": "Priority, one of: " + priorities + ". Defaults to medium.",
					},
				},
				"required": []string{"title"},
			}),
		},
		{
			Name:        string(ToolListTasks),
			Description: "List the current user's tasks, optionally filtered by status. Returns every task when no filter is given.",
			Parameters: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status_filter": map[string]any{
						"type":        "string",
						"enum":        enumValues(statuses),
						"description": "Optional status filter, one of: " + statuses,
					},
				},
			}),
		},
		{
			Name:        string(ToolUpdateTask),
			Description: "Update the status, priority or title of one of the current user's tasks. Only the fields provided are changed.",
			Parameters: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "ID of the task to update (required), as shown in [ID:...]",
					},
					"new_status": map[string]any{
						"type":        "string",
						"enum":        enumValues(statuses),
						"description": "New status, one of: " + statuses,
					},
					"new_priority": map[string]any{
						"type":        "string",
						"enum":        enumValues(priorities),
						"description": "New priority, one of: " + priorities,
					},
					"new_title": map[string]any{
						"type":        "string",
						"description": fmt.Sprintf("New title (1-%d characters)", models.MaxTaskTitleLength),
					},
				},
				"required": []string{"task_id"},
			}),
		},
		{
			Name:        string(ToolGetTaskSummary),
			Description: "Get counts of the current user's tasks by status and by priority. Takes no arguments.",
			Parameters:  mustSchema(map[string]any{"type": "object", "properties": map[string]any{}}),
		},
		{
			Name:        string(ToolGetCompletedThisWeek),
			Description: "List the current user's tasks marked done since Monday 00:00 of the current week. Takes no arguments.",
			Parameters:  mustSchema(map[string]any{"type": "object", "properties": map[string]any{}}),
		},
	}
}

// Execute runs one tool call. It never returns an error: every failure is
// rendered as text the model can relay to the user.
func (t *Toolset) Execute(ctx context.Context, name, rawArgs string) ToolResult {
	userID, err := ActorFromContext(ctx)
	if err != nil {
		return ToolResult{Content: "Error: no authenticated user for this request.", Outcome: OutcomeError}
	}

	switch ToolName(name) {
	case ToolCreateTask:
		return t.createTask(ctx, userID, rawArgs)
	case ToolListTasks:
		return t.listTasks(ctx, userID, rawArgs)
	case ToolUpdateTask:
		return t.updateTask(ctx, userID, rawArgs)
	case ToolGetTaskSummary:
		return t.taskSummary(ctx, userID)
	case ToolGetCompletedThisWeek:
		return t.completedThisWeek(ctx, userID)
	default:
		return ToolResult{
			Content: fmt.Sprintf("Error: unknown tool %q.", TruncateString(name, maxEchoLength)),
			Outcome: OutcomeUnknownTool,
		}
	}
}

type createTaskArgs struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority" validate:"omitempty,task_priority"`
}

type listTasksArgs struct {
	StatusFilter string `json:"status_filter" validate:"omitempty,task_status"`
}

type updateTaskArgs struct {
	TaskID      flexibleID `json:"task_id"`
	NewStatus   string     `json:"new_status" validate:"omitempty,task_status"`
	NewPriority string     `json:"new_priority" validate:"omitempty,task_priority"`
	NewTitle    string     `json:"new_title"`
}

// flexibleID accepts a task id given as either a JSON string or number
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task_id must be a string")
	}
	*f = flexibleID(n.String())
	return nil
}

// decodeArgs unmarshals model arguments, repairing malformed JSON when possible.
// Unknown keys such as an owner id are ignored.
func decodeArgs(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		raw = "{}"
	}
	err := json.Unmarshal([]byte(raw), dst)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return fmt.Errorf("malformed JSON arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), dst); err != nil {
		return fmt.Errorf("malformed JSON arguments: %w", err)
	}
	return nil
}

func invalidArgs(tool ToolName, msg string) ToolResult {
	return ToolResult{
		Content: fmt.Sprintf("Error: invalid arguments for %s: %s", tool, msg),
		Outcome: OutcomeInvalidArgs,
	}
}

func (t *Toolset) storeFailure(ctx context.Context, tool ToolName, action string, err error) ToolResult {
	t.logger.Error("tool_store_operation_failed",
		zap.String("tool", string(tool)),
		zap.String("request_id", ExtractRequestID(ctx)),
		zap.Error(err),
	)
	if ctx.Err() != nil {
		return ToolResult{Content: "Error: the request was cancelled before the task could be " + action + ".", Outcome: OutcomeError}
	}
	return ToolResult{
		Content: fmt.Sprintf("Error: the task could not be %s because the task store is unavailable. Please try again later.", action),
		Outcome: OutcomeError,
	}
}

func notFound(id string) ToolResult {
	return ToolResult{
		Content: fmt.Sprintf("Task %s not found.", TruncateString(id, maxEchoLength)),
		Outcome: OutcomeNotFound,
	}
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (t *Toolset) createTask(ctx context.Context, userID uuid.UUID, rawArgs string) ToolResult {
	var args createTaskArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return invalidArgs(ToolCreateTask, err.Error())
	}
	args.Priority = normalizeEnum(args.Priority)
	if err := validation.Validate.Struct(args); err != nil {
		return invalidArgs(ToolCreateTask, validation.FormatError(err))
	}

	title, err := validation.ValidateTitle(args.Title)
	if err != nil {
		return invalidArgs(ToolCreateTask, err.Error())
	}
	description, err := validation.ValidateDescription(args.Description)
	if err != nil {
		return invalidArgs(ToolCreateTask, err.Error())
	}

	task := models.NewTask(userID, title)
	if description != "" {
		task.Description = &description
	}
	if args.Priority != "" {
		task.Priority = models.TaskPriority(args.Priority)
	}

	if err := t.tasks.Create(ctx, task); err != nil {
		return t.storeFailure(ctx, ToolCreateTask, "created", err)
	}

	return ToolResult{
		Content: fmt.Sprintf("Created task [ID:%s] %s (priority: %s)", task.ID, task.Title, task.Priority),
		Outcome: OutcomeOK,
	}
}

func (t *Toolset) listTasks(ctx context.Context, userID uuid.UUID, rawArgs string) ToolResult {
	var args listTasksArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return invalidArgs(ToolListTasks, err.Error())
	}
	args.StatusFilter = normalizeEnum(args.StatusFilter)
	if err := validation.Validate.Struct(args); err != nil {
		return invalidArgs(ToolListTasks, validation.FormatError(err))
	}

	var filter models.TaskFilter
	if args.StatusFilter != "" {
		status := models.TaskStatus(args.StatusFilter)
		filter.Status = &status
	}

	tasks, err := t.tasks.ListByUser(ctx, userID, filter)
	if err != nil {
		return t.storeFailure(ctx, ToolListTasks, "listed", err)
	}
	if len(tasks) == 0 {
		return ToolResult{Content: EmptyListMessage, Outcome: OutcomeOK}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):", len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "\n- [ID:%s] %s | priority: %s | status: %s", task.ID, task.Title, task.Priority, task.Status)
	}
	return ToolResult{Content: b.String(), Outcome: OutcomeOK}
}

func (t *Toolset) updateTask(ctx context.Context, userID uuid.UUID, rawArgs string) ToolResult {
	var args updateTaskArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return invalidArgs(ToolUpdateTask, err.Error())
	}
	if args.TaskID == "" {
		return invalidArgs(ToolUpdateTask, "task_id is required")
	}
	args.NewStatus = normalizeEnum(args.NewStatus)
	args.NewPriority = normalizeEnum(args.NewPriority)
	if err := validation.Validate.Struct(args); err != nil {
		return invalidArgs(ToolUpdateTask, validation.FormatError(err))
	}

	var patch models.TaskPatch
	var changes []string
	if args.NewStatus != "" {
		status := models.TaskStatus(args.NewStatus)
		patch.Status = &status
		changes = append(changes, "status -> "+args.NewStatus)
	}
	if args.NewPriority != "" {
		priority := models.TaskPriority(args.NewPriority)
		patch.Priority = &priority
		changes = append(changes, "priority -> "+args.NewPriority)
	}
	if strings.TrimSpace(args.NewTitle) != "" {
		title, err := validation.ValidateTitle(args.NewTitle)
		if err != nil {
			return invalidArgs(ToolUpdateTask, err.Error())
		}
		patch.Title = &title
		changes = append(changes, "title -> "+title)
	}
	if patch.IsEmpty() {
		return invalidArgs(ToolUpdateTask, "provide at least one of new_status, new_priority, new_title")
	}

	rawID := string(args.TaskID)
	taskID, err := uuid.Parse(rawID)
	if err != nil {
		// Not a task id this store could hold.
		return notFound(rawID)
	}

	updated, err := t.tasks.UpdateFields(ctx, taskID, userID, patch)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return notFound(rawID)
		}
		return t.storeFailure(ctx, ToolUpdateTask, "updated", err)
	}

	return ToolResult{
		Content: fmt.Sprintf("Updated task [ID:%s]: %s", updated.ID, strings.Join(changes, ", ")),
		Outcome: OutcomeOK,
	}
}

func (t *Toolset) taskSummary(ctx context.Context, userID uuid.UUID) ToolResult {
	tasks, err := t.tasks.ListByUser(ctx, userID, models.TaskFilter{})
	if err != nil {
		return t.storeFailure(ctx, ToolGetTaskSummary, "summarized", err)
	}
	if len(tasks) == 0 {
		return ToolResult{Content: EmptySummaryMessage, Outcome: OutcomeOK}
	}

	stats := models.ComputeTaskStats(tasks)
	var b strings.Builder
	fmt.Fprintf(&b, "Task summary: %d total", stats.Total)
	b.WriteString("\nBy status:")
	for _, s := range models.TaskStatuses {
		if n := stats.ByStatus[s]; n > 0 {
			fmt.Fprintf(&b, "\n  - %s: %d", s, n)
		}
	}
	b.WriteString("\nBy priority:")
	for _, p := range models.TaskPriorities {
		if n := stats.ByPriority[p]; n > 0 {
			fmt.Fprintf(&b, "\n  - %s: %d", p, n)
		}
	}
	return ToolResult{Content: b.String(), Outcome: OutcomeOK}
}

func (t *Toolset) completedThisWeek(ctx context.Context, userID uuid.UUID) ToolResult {
	since := WeekStart(t.now(), t.location)
	done := models.TaskStatusDone
	tasks, err := t.tasks.ListByUser(ctx, userID, models.TaskFilter{Status: &done, UpdatedSince: &since})
	if err != nil {
		return t.storeFailure(ctx, ToolGetCompletedThisWeek, "listed", err)
	}
	if len(tasks) == 0 {
		return ToolResult{Content: NoCompletedThisWeekMessage, Outcome: OutcomeOK}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Completed since %s: %d task(s)", since.Format("Mon Jan 2"), len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "\n- [ID:%s] %s | priority: %s | completed: %s",
			task.ID, task.Title, task.Priority, task.UpdatedAt.In(t.location).Format("Mon Jan 2 15:04"))
	}
	return ToolResult{Content: b.String(), Outcome: OutcomeOK}
}

// WeekStart returns Monday 00:00 of the week containing now, in loc
func WeekStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

func enumValues(joined string) []string {
	return strings.Split(joined, ", ")
}

func mustSchema(schema map[string]any) json.RawMessage {
	b, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("invalid tool schema: %v", err))
	}
	return b
}
