package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewOpenAIClient_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAIClient(OpenAIConfig{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestNewOpenAIClient_Defaults(t *testing.T) {
	t.Parallel()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}
	if c.Model() != DefaultOpenAIModel {
		t.Errorf("Expected model %s, got %s", DefaultOpenAIModel, c.Model())
	}
}

func TestNewOpenAIClient_LogsRedactedKey(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	_, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-live-1234567890abcdef", Model: "test-model", Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	entries := logs.FilterMessage("model_client_configured").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 model_client_configured entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["api_key"] != "sk-l"+RedactedValue+"cdef" {
		t.Errorf("Expected redacted key, got %v", fields["api_key"])
	}
	if fields["model"] != "test-model" {
		t.Errorf("Expected model test-model, got %v", fields["model"])
	}
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			if s, ok := v.(string); ok && strings.Contains(s, "1234567890") {
				t.Errorf("Expected key never logged in full, got %q", s)
			}
		}
	}
}

func TestToOpenAIMessages(t *testing.T) {
	t.Parallel()

	msgs := toOpenAIMessages([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "list_tasks", Arguments: "{}"}}},
		{Role: RoleTool, Content: EmptyListMessage, ToolCallID: "call_1"},
		{Role: RoleAssistant, Content: "done"},
	})
	if len(msgs) != 5 {
		t.Fatalf("Expected 5 messages, got %d", len(msgs))
	}
	if msgs[2].OfAssistant == nil || len(msgs[2].OfAssistant.ToolCalls) != 1 {
		t.Fatal("Expected assistant message carrying one tool call")
	}
	if msgs[3].OfTool == nil {
		t.Error("Expected a tool message")
	}
}

func TestToOpenAITools(t *testing.T) {
	t.Parallel()

	specs := NewToolset(nil).Specs()
	tools, err := toOpenAITools(specs)
	if err != nil {
		t.Fatalf("toOpenAITools failed: %v", err)
	}
	if len(tools) != len(specs) {
		t.Errorf("Expected %d tools, got %d", len(specs), len(tools))
	}

	if _, err := toOpenAITools([]ToolSpec{{Name: "bad", Parameters: json.RawMessage(`[`)}}); err == nil {
		t.Error("Expected error for invalid schema")
	}
}

func TestOpenAIClient_Complete_ToolCall(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Expected bearer auth header, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "create_task", "arguments": "{\"title\":\"write report\"}"}
					}]
				}
			}]
		}`)
	}))
	defer server.Close()

	c, err := NewOpenAIClient(OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     server.URL + "/v1/",
		Model:       "test-model",
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	resp, err := c.Complete(context.Background(), ModelRequest{
		Messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "add a task"}},
		Tools:    NewToolset(nil).Specs(),
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_1" || call.Name != "create_task" || call.Arguments != `{"title":"write report"}` {
		t.Errorf("Unexpected tool call %+v", call)
	}

	if gotBody["model"] != "test-model" {
		t.Errorf("Expected model in request, got %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", gotBody["temperature"])
	}
	tools, _ := gotBody["tools"].([]any)
	if len(tools) != 5 {
		t.Errorf("Expected 5 tools in request, got %d", len(tools))
	}
}

func TestOpenAIClient_Complete_APIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer server.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-bad", BaseURL: server.URL + "/v1/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	_, err = c.Complete(context.Background(), ModelRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", apiErr.StatusCode)
	}
	if IsRateLimitError(err) {
		t.Error("Expected 401 not to be classified as a rate limit")
	}
}

func TestOpenAIClient_Complete_RateLimitRetryAfter(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Beyond the SDK's own retry window, so the hint reaches the caller
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1/", Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	_, err = c.Complete(context.Background(), ModelRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.RetryAfter != 2*time.Minute {
		t.Errorf("Expected RetryAfter 2m, got %v", apiErr.RetryAfter)
	}
	if !IsRateLimitError(err) || IsQuotaError(err) {
		t.Errorf("Expected rate limit classification, got rate=%v quota=%v", IsRateLimitError(err), IsQuotaError(err))
	}
	if got := GetRetryDelay(err, 0); got != 2*time.Minute {
		t.Errorf("Expected retry delay 2m, got %v", got)
	}
}
