package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/benvon/taskflow/internal/database/memory"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/services/auth"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// recordingCache records which users were evicted
type recordingCache struct {
	forgotten []uuid.UUID
}

func (c *recordingCache) Forget(id uuid.UUID) { c.forgotten = append(c.forgotten, id) }

type userFixture struct {
	router *mux.Router
	users  *memory.UserRepository
	tokens *auth.TokenManager
	cache  *recordingCache
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	tokens, err := auth.NewTokenManager(testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	f := &userFixture{
		router: mux.NewRouter(),
		users:  memory.NewUserRepository(),
		tokens: tokens,
		cache:  &recordingCache{},
	}
	h := NewUserHandler(f.users, tokens, f.cache, zap.NewNop())
	sub := f.router.PathPrefix("/api/v1/users").Subrouter()
	h.RegisterPublicRoutes(sub)
	h.RegisterRoutes(sub)
	return f
}

func (f *userFixture) register(t *testing.T, username, email, password string) *models.User {
	t.Helper()
	w := serveAs(f.router, nil, newTestRequest("POST", "/api/v1/users/register", map[string]any{
		"username": username, "email": email, "password": password,
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var user models.User
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &user); err != nil {
		t.Fatalf("Failed to decode user: %v", err)
	}
	return &user
}

func TestUserHandler_Register(t *testing.T) {
	t.Parallel()

	f := newUserFixture(t)
	user := f.register(t, "alice", "Alice@Example.com", "correct-horse")
	if user.Email != "alice@example.com" {
		t.Errorf("Expected normalized email, got %q", user.Email)
	}

	stored, err := f.users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-horse" {
		t.Error("Expected password to be stored hashed")
	}

	tests := []struct {
		name          string
		body          map[string]any
		expectMessage string
	}{
		{"duplicate username", map[string]any{"username": "alice", "email": "other@example.com", "password": "correct-horse"}, "username already exists"},
		{"duplicate email", map[string]any{"username": "alice2", "email": "alice@example.com", "password": "correct-horse"}, "email already exists"},
		{"short username", map[string]any{"username": "al", "email": "al@example.com", "password": "correct-horse"}, ""},
		{"bad username characters", map[string]any{"username": "al ice", "email": "x@example.com", "password": "correct-horse"}, ""},
		{"bad email", map[string]any{"username": "carol", "email": "not-an-email", "password": "correct-horse"}, ""},
		{"short password", map[string]any{"username": "carol", "email": "carol@example.com", "password": "short"}, "password must be at least 8 characters"},
		{"multibyte password over bcrypt limit", map[string]any{"username": "carol", "email": "carol@example.com", "password": strings.Repeat("é", 40)}, "password must be at most 72 bytes"},
		{"few multibyte characters", map[string]any{"username": "carol", "email": "carol@example.com", "password": "密码密码"}, "password must be at least 8 characters"},
	}
	for _, tt := range tests {
		w := serveAs(f.router, nil, newTestRequest("POST", "/api/v1/users/register", tt.body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.name, w.Code)
			continue
		}
		env := decodeEnvelope(t, w)
		if tt.expectMessage != "" && env.Message != tt.expectMessage {
			t.Errorf("%s: expected message %q, got %q", tt.name, tt.expectMessage, env.Message)
		}
	}
}

func TestUserHandler_Login(t *testing.T) {
	t.Parallel()

	f := newUserFixture(t)
	user := f.register(t, "alice", "alice@example.com", "correct-horse")

	w := serveAs(f.router, nil, newTestRequest("POST", "/api/v1/users/login", map[string]any{"username": "alice", "password": "correct-horse"}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var token models.AccessToken
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &token); err != nil {
		t.Fatalf("Failed to decode token: %v", err)
	}
	if token.TokenType != "bearer" || token.ExpiresIn != 3600 {
		t.Errorf("Unexpected token response %+v", token)
	}
	claims, err := f.tokens.Verify(token.AccessToken)
	if err != nil {
		t.Fatalf("Issued token does not verify: %v", err)
	}
	if id, _ := auth.UserIDFromClaims(claims); id != user.ID {
		t.Errorf("Expected token subject %s, got %s", user.ID, id)
	}

	for _, creds := range []map[string]any{
		{"username": "alice", "password": "wrong-password"},
		{"username": "nobody", "password": "correct-horse"},
	} {
		w := serveAs(f.router, nil, newTestRequest("POST", "/api/v1/users/login", creds))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for %v, got %d", creds["username"], w.Code)
		}
	}
}

func TestUserHandler_ResetPassword(t *testing.T) {
	t.Parallel()

	f := newUserFixture(t)
	user := f.register(t, "alice", "alice@example.com", "correct-horse")

	w := serveAs(f.router, user, newTestRequest("POST", "/api/v1/users/reset-password", map[string]any{
		"current_password": "correct-horse", "new_password": strings.Repeat("ü", 37),
	}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a new password over 72 bytes, got %d", w.Code)
	} else if env := decodeEnvelope(t, w); env.Message != "password must be at most 72 bytes" {
		t.Errorf("Expected byte limit message, got %q", env.Message)
	}

	w = serveAs(f.router, user, newTestRequest("POST", "/api/v1/users/reset-password", map[string]any{
		"current_password": "wrong-password", "new_password": "battery-staple",
	}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong current password, got %d", w.Code)
	}

	w = serveAs(f.router, user, newTestRequest("POST", "/api/v1/users/reset-password", map[string]any{
		"current_password": "correct-horse", "new_password": "battery-staple",
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.cache.forgotten) != 1 || f.cache.forgotten[0] != user.ID {
		t.Errorf("Expected cached user to be evicted, got %v", f.cache.forgotten)
	}

	w = serveAs(f.router, nil, newTestRequest("POST", "/api/v1/users/login", map[string]any{"username": "alice", "password": "battery-staple"}))
	if w.Code != http.StatusOK {
		t.Errorf("Expected login with new password, got %d", w.Code)
	}
	w = serveAs(f.router, nil, newTestRequest("POST", "/api/v1/users/login", map[string]any{"username": "alice", "password": "correct-horse"}))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected old password rejected, got %d", w.Code)
	}
}

func TestUserHandler_GetMe(t *testing.T) {
	t.Parallel()

	f := newUserFixture(t)
	user := f.register(t, "alice", "alice@example.com", "correct-horse")

	w := serveAs(f.router, user, newTestRequest("GET", "/api/v1/users/me", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var raw map[string]any
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &raw); err != nil {
		t.Fatalf("Failed to decode user: %v", err)
	}
	if raw["username"] != "alice" {
		t.Errorf("Expected username alice, got %v", raw["username"])
	}
	if _, leaked := raw["password_hash"]; leaked {
		t.Error("Expected password hash to be omitted")
	}

	w = serveAs(f.router, nil, newTestRequest("GET", "/api/v1/users/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without user, got %d", w.Code)
	}
}
