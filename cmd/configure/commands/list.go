package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/benvon/taskflow/internal/database"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runtime settings",
		Long:  "List the rate limit and CORS settings stored in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			return listSettings(cmd.Context(), cmd.OutOrStdout(),
				database.NewRatelimitConfigRepository(db),
				database.NewCorsConfigRepository(db),
			)
		},
	}

	return cmd
}

func listSettings(ctx context.Context, w io.Writer, ratelimit database.RatelimitConfigRepositoryInterface, cors database.CorsConfigRepositoryInterface) error {
	if err := printRatelimit(ctx, w, ratelimit); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return printCors(ctx, w, cors)
}
