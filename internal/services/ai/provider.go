package ai

import (
	"context"
	"encoding/json"
)

// Role tags a message in the conversation
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model request to run one tool
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON as produced by the model
}

// Message is one entry of the conversation exchanged with the model
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages that request tools
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID is set on tool messages and names the call they answer
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolSpec describes a tool to the model
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON schema object
}

// ModelRequest is one completion request
type ModelRequest struct {
	Messages []Message
	Tools    []ToolSpec
}

// ModelResponse is the model's next turn. With no ToolCalls the content is final.
type ModelResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ModelClient is a chat model that supports function calling
type ModelClient interface {
	Complete(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}
