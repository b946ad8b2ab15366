package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/queue"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewReportCmd creates the weekly report job command
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Manage weekly report jobs",
	}
	cmd.AddCommand(newReportEnqueueCmd())
	return cmd
}

func newReportEnqueueCmd() *cobra.Command {
	var username string
	var all bool
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue weekly report generation now",
		Long: "Publish weekly report jobs for one user or for every user, for the current week in " +
			"REPORT_TIMEZONE. The worker skips users that already have a report for that week.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			if !cfg.QueueEnabled() {
				return errors.New("RABBITMQ_URL is not set")
			}

			jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zap.NewNop())
			if err != nil {
				return fmt.Errorf("connect to RabbitMQ: %w", err)
			}
			defer func() { _ = jobQueue.Close() }()

			weekStart := ai.WeekStart(time.Now(), cfg.ReportLocation)
			return enqueueReports(cmd.Context(), cmd.OutOrStdout(), database.NewUserRepository(db), jobQueue, weekStart, username, all)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Queue a report for this user")
	cmd.Flags().BoolVar(&all, "all", false, "Queue a report for every user")
	return cmd
}

func enqueueReports(ctx context.Context, w io.Writer, users database.UserRepositoryInterface, publisher queue.Publisher, weekStart time.Time, username string, all bool) error {
	username = strings.TrimSpace(username)
	if (username == "") == !all {
		return fmt.Errorf("exactly one of --username or --all is required")
	}

	var ids []uuid.UUID
	if all {
		var err error
		ids, err = users.ListIDs(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
	} else {
		user, err := users.GetByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("find user %q: %w", username, err)
		}
		ids = []uuid.UUID{user.ID}
	}

	var failed int
	for _, id := range ids {
		if err := publisher.Enqueue(ctx, queue.NewWeeklyReportJob(id, weekStart)); err != nil {
			fmt.Fprintf(w, "  failed for %s: %v\n", id, err)
			failed++
		}
	}

	fmt.Fprintf(w, "Queued %d weekly report job(s) for the week of %s.\n", len(ids)-failed, weekStart.Format("2006-01-02"))
	if failed > 0 {
		return fmt.Errorf("%d job(s) could not be queued", failed)
	}
	return nil
}
