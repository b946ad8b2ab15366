package middleware

import (
	"context"

	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/request"
)

// SetUserInContext attaches user the way the auth middleware does.
// Exported for handler tests in other packages.
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return request.WithUser(ctx, user)
}
