package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/request"
	"github.com/benvon/taskflow/internal/services/auth"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// DefaultUserCacheSize bounds how many authenticated users are cached
	DefaultUserCacheSize = 1024
	// DefaultUserCacheTTL is how long a cached user is trusted before a re-read
	DefaultUserCacheTTL = time.Minute
)

// TokenVerifier validates access tokens
type TokenVerifier interface {
	Verify(token string) (*models.JWTClaims, error)
}

// UserLookup loads the account behind a verified token
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var (
	_ TokenVerifier = (*auth.TokenManager)(nil)
	_ UserLookup    = (database.UserRepositoryInterface)(nil)
)

type cachedUser struct {
	user     models.User
	storedAt time.Time
}

// Authenticator resolves bearer tokens to users and attaches them to the request context
type Authenticator struct {
	tokens TokenVerifier
	users  UserLookup
	logger *zap.Logger
	cache  *lru.Cache[uuid.UUID, cachedUser]
	ttl    time.Duration
	now    func() time.Time
}

// AuthOption configures an Authenticator
type AuthOption func(*Authenticator)

// WithUserCacheTTL overrides DefaultUserCacheTTL. Zero disables caching.
func WithUserCacheTTL(ttl time.Duration) AuthOption {
	return func(a *Authenticator) {
		a.ttl = ttl
	}
}

// NewAuthenticator creates bearer token authentication
func NewAuthenticator(tokens TokenVerifier, users UserLookup, logger *zap.Logger, opts ...AuthOption) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, _ := lru.New[uuid.UUID, cachedUser](DefaultUserCacheSize) // only fails for size <= 0
	a := &Authenticator{
		tokens: tokens,
		users:  users,
		logger: logger,
		cache:  cache,
		ttl:    DefaultUserCacheTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Middleware rejects requests without a valid bearer token with 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header", a.logger)
			return
		}

		claims, err := a.tokens.Verify(tokenString)
		if err != nil {
			a.logger.Debug("token_verification_failed",
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
				zap.Error(err),
			)
			respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", a.logger)
			return
		}

		userID, err := auth.UserIDFromClaims(claims)
		if err != nil {
			respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", a.logger)
			return
		}

		user, err := a.lookup(r.Context(), userID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				// Token outlived its account.
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", a.logger)
				return
			}
			a.logger.Error("failed_to_load_authenticated_user",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "Failed to load user", a.logger)
			return
		}

		next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
	})
}

// Forget drops a cached user so the next request re-reads it
func (a *Authenticator) Forget(userID uuid.UUID) {
	a.cache.Remove(userID)
}

func (a *Authenticator) lookup(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if a.ttl > 0 {
		if entry, ok := a.cache.Get(id); ok && a.now().Sub(entry.storedAt) < a.ttl {
			u := entry.user
			return &u, nil
		}
	}
	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.ttl > 0 {
		a.cache.Add(id, cachedUser{user: *user, storedAt: a.now()})
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserFromContext extracts the authenticated user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}
