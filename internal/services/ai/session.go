package ai

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const actorContextKey contextKey = "actor_user_id"

// ErrNoActor is returned when a tool or run has no acting user bound to its context
var ErrNoActor = errors.New("no acting user in context")

// WithActor binds the acting user for one chat request. Every tool resolves
// ownership from this value and never from model-supplied arguments.
func WithActor(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorContextKey, userID)
}

// ActorFromContext returns the acting user bound by WithActor
func ActorFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(actorContextKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}
