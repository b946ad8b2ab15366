package main

import (
	"fmt"
	"os"

	"github.com/benvon/taskflow/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "taskflow-configure",
		Short: "Configuration tool for the TaskFlow API",
		Long:  "CLI tool for runtime settings, password recovery, weekly report jobs and model connectivity checks",
	}

	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewUserCmd())
	rootCmd.AddCommand(commands.NewReportCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
