package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/services/auth"
	"github.com/spf13/cobra"
)

// NewUserCmd creates the user administration command
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer user accounts",
	}
	cmd.AddCommand(newUserResetPasswordCmd())
	return cmd
}

func newUserResetPasswordCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for a user",
		Long: "Replace a user's password without knowing the current one. When --password is omitted " +
			"a random password is generated and printed once. Existing tokens stay valid until they expire.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			return resetPassword(cmd.Context(), cmd.OutOrStdout(), database.NewUserRepository(db), username, password)
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Username of the account (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (generated when empty)")
	return cmd
}

func resetPassword(ctx context.Context, w io.Writer, users database.UserRepositoryInterface, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("--username is required")
	}

	user, err := users.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("find user %q: %w", username, err)
	}

	generated := password == ""
	if generated {
		password, err = generatePassword()
		if err != nil {
			return err
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	fmt.Fprintf(w, "Password updated for %s.\n", user.Username)
	if generated {
		fmt.Fprintf(w, "New password: %s\n", password)
	}
	return nil
}

// generatePassword returns 18 random bytes as URL-safe base64 (24 characters)
func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
