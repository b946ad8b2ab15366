package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultMaxToolRounds bounds how many tool rounds one run may execute
const DefaultMaxToolRounds = 10

const tracerName = "github.com/benvon/taskflow/internal/services/ai"

// AgentState is the loop's current phase
type AgentState string

const (
	// StateThinking asks the model for a final answer or tool calls
	StateThinking AgentState = "THINKING"
	// StateActing executes the tool calls the model requested
	StateActing AgentState = "ACTING"
)

// Run outcomes reported in metrics and logs
const (
	RunOutcomeCompleted  = "completed"
	RunOutcomeTruncated  = "truncated"
	RunOutcomeModelError = "model_error"
	RunOutcomeCancelled  = "cancelled"
)

// ToolInvocation records one executed tool call
type ToolInvocation struct {
	Name      string
	Arguments string
	Result    string
	Outcome   ToolOutcome
}

// RunResult is the outcome of one agent run
type RunResult struct {
	Reply       string
	Rounds      int
	Invocations []ToolInvocation
	// Truncated is set when the round limit stopped the run early
	Truncated bool
}

// Agent drives the bounded THINKING/ACTING loop between a model and the tool set
type Agent struct {
	model        ModelClient
	tools        *Toolset
	maxRounds    int
	systemPrompt string
	logger       *zap.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

// AgentOption configures an Agent
type AgentOption func(*Agent)

// WithMaxToolRounds overrides the tool round limit
func WithMaxToolRounds(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithSystemPrompt overrides the system prompt
func WithSystemPrompt(prompt string) AgentOption {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// WithAgentLogger sets the logger
func WithAgentLogger(logger *zap.Logger) AgentOption {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *Metrics) AgentOption {
	return func(a *Agent) {
		a.metrics = m
	}
}

// NewAgent creates an agent
func NewAgent(model ModelClient, tools *Toolset, opts ...AgentOption) *Agent {
	a := &Agent{
		model:        model,
		tools:        tools,
		maxRounds:    DefaultMaxToolRounds,
		systemPrompt: SystemPrompt,
		logger:       zap.NewNop(),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run answers userMessage on behalf of the actor bound to ctx. Tool failures
// are fed back to the model as text; model failures and cancellation end the
// run with an error.
func (a *Agent) Run(ctx context.Context, userMessage string) (*RunResult, error) {
	actor, err := ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "agent.run")
	defer span.End()

	logger := a.logger.With(
		zap.String("user_id", actor.String()),
		zap.String("request_id", ExtractRequestID(ctx)),
	)

	result, outcome, err := a.loop(ctx, userMessage, logger)
	rounds := 0
	if result != nil {
		rounds = result.Rounds
	}
	a.metrics.observeRun(outcome, rounds)
	span.SetAttributes(
		attribute.String("agent.outcome", outcome),
		attribute.Int("agent.rounds", rounds),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Warn("agent_run_failed",
			zap.String("outcome", outcome),
			zap.Int("rounds", rounds),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Info("agent_run_completed",
		zap.String("outcome", outcome),
		zap.Int("rounds", result.Rounds),
		zap.Int("tool_calls", len(result.Invocations)),
	)
	return result, nil
}

func (a *Agent) loop(ctx context.Context, userMessage string, logger *zap.Logger) (*RunResult, string, error) {
	messages := []Message{
		{Role: RoleSystem, Content: a.systemPrompt},
		{Role: RoleUser, Content: userMessage},
	}
	specs := a.tools.Specs()
	result := &RunResult{}
	state := StateThinking
	var pending []ToolCall
	var lastAssistantText string

	for {
		if err := ctx.Err(); err != nil {
			return result, RunOutcomeCancelled, fmt.Errorf("agent run cancelled: %w", err)
		}

		switch state {
		case StateThinking:
			start := time.Now()
			resp, err := a.model.Complete(ctx, ModelRequest{Messages: messages, Tools: specs})
			a.metrics.observeModelCall(time.Since(start).Seconds())
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return result, RunOutcomeCancelled, fmt.Errorf("agent run cancelled: %w", err)
				}
				return result, RunOutcomeModelError, err
			}

			if len(resp.ToolCalls) == 0 {
				result.Reply = strings.TrimSpace(resp.Content)
				if result.Reply == "" {
					result.Reply = FallbackReply
				}
				return result, RunOutcomeCompleted, nil
			}

			if text := strings.TrimSpace(resp.Content); text != "" {
				lastAssistantText = text
			}
			if result.Rounds >= a.maxRounds {
				logger.Warn("agent_round_limit_reached",
					zap.Int("max_rounds", a.maxRounds),
					zap.Int("pending_tool_calls", len(resp.ToolCalls)),
				)
				result.Truncated = true
				result.Reply = partialReply(lastAssistantText, result.Invocations)
				return result, RunOutcomeTruncated, nil
			}

			messages = append(messages, Message{
				Role:      RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			pending = resp.ToolCalls
			state = StateActing

		case StateActing:
			for _, call := range pending {
				if err := ctx.Err(); err != nil {
					return result, RunOutcomeCancelled, fmt.Errorf("agent run cancelled: %w", err)
				}
				res := a.executeTool(ctx, call, logger)
				result.Invocations = append(result.Invocations, ToolInvocation{
					Name:      call.Name,
					Arguments: call.Arguments,
					Result:    res.Content,
					Outcome:   res.Outcome,
				})
				messages = append(messages, Message{
					Role:       RoleTool,
					Content:    res.Content,
					ToolCallID: call.ID,
				})
			}
			pending = nil
			result.Rounds++
			state = StateThinking
		}
	}
}

func (a *Agent) executeTool(ctx context.Context, call ToolCall, logger *zap.Logger) ToolResult {
	ctx, span := a.tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	res := a.tools.Execute(ctx, call.Name, call.Arguments)
	span.SetAttributes(attribute.String("tool.outcome", string(res.Outcome)))
	if res.Outcome == OutcomeError {
		span.SetStatus(codes.Error, string(res.Outcome))
	}
	a.metrics.observeTool(ToolName(call.Name), res.Outcome)

	logger.Debug("agent_tool_executed",
		zap.String("tool", call.Name),
		zap.String("outcome", string(res.Outcome)),
		zap.String("arguments_preview", SanitizePrompt(call.Arguments, false)),
	)
	return res
}

// partialReply builds the best-effort answer returned when the round limit is hit
func partialReply(lastAssistantText string, invocations []ToolInvocation) string {
	var b strings.Builder
	b.WriteString(truncatedReplyPrefix)
	if lastAssistantText != "" {
		b.WriteString("\n\n")
		b.WriteString(lastAssistantText)
	}
	if n := len(invocations); n > 0 {
		b.WriteString("\n\nLatest result:\n")
		b.WriteString(invocations[n-1].Result)
	}
	return b.String()
}
