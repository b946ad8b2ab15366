package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options (stored in database).",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			return printCors(cmd.Context(), cmd.OutOrStdout(), database.NewCorsConfigRepository(db))
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated). Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			c := &models.CorsConfig{
				AllowedOrigins:   origins,
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			return setCors(cmd.Context(), cmd.OutOrStdout(), database.NewCorsConfigRepository(db), c)
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}

func printCors(ctx context.Context, w io.Writer, repo database.CorsConfigRepositoryInterface) error {
	c, err := repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("get cors config: %w", err)
	}
	if c == nil {
		fmt.Fprintln(w, "No CORS configuration in database (FRONTEND_URL applies). Use 'cors set' to add one.")
		return nil
	}
	fmt.Fprintln(w, "CORS configuration:")
	fmt.Fprintf(w, "  Allowed origins: %s\n", c.AllowedOrigins)
	fmt.Fprintf(w, "  Allow credentials: %v\n", c.AllowCredentials)
	fmt.Fprintf(w, "  Max-Age: %d\n", c.MaxAge)
	return nil
}

func setCors(ctx context.Context, w io.Writer, repo database.CorsConfigRepositoryInterface, c *models.CorsConfig) error {
	c.AllowedOrigins = strings.TrimSpace(c.AllowedOrigins)
	if c.AllowedOrigins == "" {
		return fmt.Errorf("--origins is required (comma-separated list)")
	}
	if err := repo.Set(ctx, c); err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	fmt.Fprintln(w, "CORS configuration updated.")
	return nil
}
