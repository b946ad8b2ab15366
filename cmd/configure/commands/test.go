package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/benvon/taskflow/internal/config"
	"github.com/benvon/taskflow/internal/database/memory"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check connectivity to external services",
	}
	cmd.AddCommand(newTestModelCmd())
	cmd.AddCommand(newTestQueueCmd())
	return cmd
}

func newTestModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Check the model endpoint answers and supports function calling",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client, err := ai.NewOpenAIClient(ai.OpenAIConfig{
				APIKey:      cfg.OpenAIKey,
				BaseURL:     cfg.AIBaseURL,
				Model:       cfg.AIModel,
				Temperature: cfg.AITemperature,
				Timeout:     cfg.AIRequestTimeout,
				Logger:      zap.NewNop(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Testing model %s\n", client.Model())
			return testModel(cmd.Context(), cmd.OutOrStdout(), client)
		},
	}
}

// testModel sends one plain prompt and one prompt that should trigger a tool call
func testModel(ctx context.Context, w io.Writer, model ai.ModelClient) error {
	start := time.Now()
	resp, err := model.Complete(ctx, ai.ModelRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Reply with the single word OK."}},
	})
	if err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}
	fmt.Fprintf(w, "✓ Completion answered in %s: %q\n", time.Since(start).Round(time.Millisecond), resp.Content)

	specs := ai.NewToolset(memory.NewTaskRepository(nil)).Specs()
	resp, err = model.Complete(ctx, ai.ModelRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: ai.SystemPrompt},
			{Role: ai.RoleUser, Content: "How many tasks do I have? Use the " + string(ai.ToolGetTaskSummary) + " tool."},
		},
		Tools: specs,
	})
	if err != nil {
		return fmt.Errorf("tool completion failed: %w", err)
	}
	if len(resp.ToolCalls) == 0 {
		return errors.New("model answered without calling a tool; function calling looks unsupported")
	}
	fmt.Fprintf(w, "✓ Function calling works (requested %s)\n", resp.ToolCalls[0].Name)
	return nil
}

func newTestQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Check the report queue is reachable and declared",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.QueueEnabled() {
				return errors.New("RABBITMQ_URL is not set")
			}
			jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zap.NewNop())
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer func() { _ = jobQueue.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := jobQueue.HealthCheck(ctx); err != nil {
				return fmt.Errorf("queue health check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Report queue is reachable")
			return nil
		},
	}
}
