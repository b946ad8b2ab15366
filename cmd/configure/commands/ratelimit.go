package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/middleware"
	"github.com/benvon/taskflow/internal/models"
	"github.com/spf13/cobra"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the per-client rate limit (e.g. 20-S, 100-M). Servers pick changes up within a minute.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			return printRatelimit(cmd.Context(), cmd.OutOrStdout(), database.NewRatelimitConfigRepository(db))
		},
	}
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		Long:  "Update the rate limit (e.g. 5-S, 100-M, 1000-H). Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			return setRatelimit(cmd.Context(), cmd.OutOrStdout(), database.NewRatelimitConfigRepository(db), rate)
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 5-S, 100-M, 1000-H) (required)")
	return cmd
}

func printRatelimit(ctx context.Context, w io.Writer, repo database.RatelimitConfigRepositoryInterface) error {
	c, err := repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("get ratelimit config: %w", err)
	}
	if c == nil {
		fmt.Fprintf(w, "No rate limit configuration in database (default %s applies). Use 'ratelimit set' to add one.\n", middleware.DefaultRatelimitRate)
		return nil
	}
	fmt.Fprintln(w, "Rate limit configuration:")
	fmt.Fprintf(w, "  Rate: %s\n", c.Rate)
	fmt.Fprintf(w, "  Updated: %s\n", c.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func setRatelimit(ctx context.Context, w io.Writer, repo database.RatelimitConfigRepositoryInterface, rate string) error {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	if err := repo.Set(ctx, &models.RatelimitConfig{Rate: rate}); err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	fmt.Fprintln(w, "Rate limit configuration updated.")
	return nil
}
