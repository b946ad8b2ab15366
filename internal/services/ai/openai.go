package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for one model call
	DefaultTimeout = 90 * time.Second
	// DefaultTemperature controls how varied replies are
	DefaultTemperature = 0.7

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIConfig configures the OpenAI-compatible client
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	Logger      *zap.Logger
	DebugMode   bool
}

// OpenAIClient implements ModelClient against any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
	logger      *zap.Logger
	debugMode   bool
}

var _ ModelClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. A missing API key fails with ErrNotConfigured
// so callers can report a configuration problem before any request runs.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is empty", ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(1),
	)

	cfg.Logger.Info("model_client_configured",
		zap.String("model", cfg.Model),
		zap.String("base_url", cfg.BaseURL),
		zap.String("api_key", SanitizeAPIKey(cfg.APIKey)),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &OpenAIClient{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
		debugMode:   cfg.DebugMode,
	}, nil
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends the conversation and tool schemas and returns the model's next turn
func (c *OpenAIClient) Complete(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(c.temperature),
	}
	if len(req.Tools) > 0 {
		tools, err := toOpenAITools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	requestID := ExtractRequestID(ctx)
	userID := ExtractUserID(ctx)
	if c.debugMode {
		last := ""
		if n := len(req.Messages); n > 0 {
			last = req.Messages[n-1].Content
		}
		c.logger.Debug("llm_api_request",
			zap.String("operation", "chat_completion"),
			zap.String("model", c.model),
			zap.Int("message_count", len(req.Messages)),
			zap.Int("tool_count", len(req.Tools)),
			zap.String("last_message_preview", SanitizePrompt(last, true)),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		if c.debugMode {
			c.logger.Debug("llm_api_error",
				zap.String("operation", "chat_completion"),
				zap.String("model", c.model),
				zap.Error(err),
				zap.String("user_id", userID),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		return nil, fmt.Errorf("chat completion failed: %w", classifyOpenAIError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	msg := resp.Choices[0].Message
	out := &ModelResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if c.debugMode {
		c.logger.Debug("llm_api_response",
			zap.String("operation", "chat_completion"),
			zap.String("model", c.model),
			zap.Int("response_length", len(out.Content)),
			zap.Int("tool_call_count", len(out.ToolCalls)),
			zap.String("response_preview", SanitizeResponse(out.Content, true)),
			zap.String("finish_reason", resp.Choices[0].FinishReason),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func toOpenAITools(specs []ToolSpec) ([]openai.ChatCompletionToolUnionParam, error) {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var params openai.FunctionParameters
		if err := json.Unmarshal(spec.Parameters, &params); err != nil {
			return nil, fmt.Errorf("invalid parameters for tool %s: %w", spec.Name, err)
		}
		tools = append(tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
			Parameters:  params,
		}))
	}
	return tools, nil
}

// classifyOpenAIError maps SDK errors onto APIError. Transport failures pass
// through unchanged and retry on the default schedule.
func classifyOpenAIError(err error) error {
	var sdkErr *openai.Error
	if errors.As(err, &sdkErr) {
		apiErr := &APIError{
			StatusCode: sdkErr.StatusCode,
			Message:    sdkErr.Message,
			Type:       sdkErr.Type,
			Code:       sdkErr.Code,
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(sdkErr.StatusCode)
		}
		apiErr.IsPermanent = apiErr.Code == codeInsufficientQuota
		if sdkErr.Response != nil {
			apiErr.RetryAfter = parseRetryAfter(sdkErr.Response.Header, time.Now())
		}
		return apiErr
	}
	return err
}
