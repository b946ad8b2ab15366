package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/services/auth"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TokenIssuer issues access tokens for authenticated users
type TokenIssuer interface {
	Issue(userID uuid.UUID) (string, error)
	TTL() time.Duration
}

// userCache is implemented by the auth middleware's user cache
type userCache interface {
	Forget(userID uuid.UUID)
}

// UserHandler handles registration, login and account requests
type UserHandler struct {
	users  database.UserRepositoryInterface
	tokens TokenIssuer
	cache  userCache
	logger *zap.Logger
}

// NewUserHandler creates a new user handler. cache may be nil.
func NewUserHandler(users database.UserRepositoryInterface, tokens TokenIssuer, cache userCache, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, tokens: tokens, cache: cache, logger: logger}
}

// RegisterPublicRoutes registers routes that need no token.
// The router should already have the /api/v1/users prefix.
func (h *UserHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
}

// RegisterRoutes registers authenticated user routes
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
	r.HandleFunc("/reset-password", h.ResetPassword).Methods("POST")
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetPasswordRequest represents a password change by the signed-in user
type ResetPasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Register creates an account
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// bcrypt counts bytes, not characters
	if err := auth.ValidatePassword(req.Password); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		var dup *database.DuplicateError
		if errors.As(err, &dup) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", dup.Error())
			return
		}
		h.logger.Error("failed_to_create_user", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create user")
		return
	}

	h.logger.Info("user_registered", zap.String("user_id", user.ID.String()))
	respondJSON(w, http.StatusCreated, user)
}

// Login exchanges a username and password for an access token
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		h.logger.Error("failed_to_load_user", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to log in")
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Incorrect username or password")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed_to_issue_token", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to log in")
		return
	}

	respondJSON(w, http.StatusOK, models.AccessToken{
		AccessToken: token,
		TokenType:   auth.TokenTypeBearer,
		ExpiresIn:   int(h.tokens.TTL().Seconds()),
	})
}

// GetMe returns current user information
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ResetPassword replaces the signed-in user's password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	// The cached user may be stale, so check against the stored hash
	current, err := h.users.GetByID(ctx, user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to reset password")
		return
	}
	if auth.CheckPassword(current.PasswordHash, req.CurrentPassword) != nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.logger.Error("failed_to_update_password", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to reset password")
		return
	}
	if h.cache != nil {
		h.cache.Forget(user.ID)
	}

	h.logger.Info("password_reset", zap.String("user_id", user.ID.String()))
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated, please log in with the new password"})
}
