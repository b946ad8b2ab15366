package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/benvon/taskflow/internal/database"
	"github.com/benvon/taskflow/internal/logger"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/services/ai"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// MaxChatMessageLength is the longest chat message accepted, in characters
	MaxChatMessageLength = 4000
	// unavailablePrefix starts every in-band failure reply
	unavailablePrefix = "AI service unavailable, error: "
)

// ChatRunner answers one chat message for the actor bound to ctx
type ChatRunner interface {
	Run(ctx context.Context, userMessage string) (*ai.RunResult, error)
}

// WeeklyReporter produces and reads back weekly reports
type WeeklyReporter interface {
	GenerateWeekly(ctx context.Context) (*models.Report, error)
	LatestWeekly(ctx context.Context, userID uuid.UUID) (*models.Report, error)
}

var (
	_ ChatRunner     = (*ai.Agent)(nil)
	_ WeeklyReporter = (*ai.ReportService)(nil)
)

// ChatHandler handles AI chat requests
type ChatHandler struct {
	agent   ChatRunner
	reports WeeklyReporter
	logger  *zap.Logger
}

// NewChatHandler creates a new chat handler. Pass nil interfaces when the AI
// provider is not configured; chat endpoints then answer 503.
func NewChatHandler(agent ChatRunner, reports WeeklyReporter, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{agent: agent, reports: reports, logger: logger}
}

// RegisterRoutes registers chat routes. The router should already have the
// /api/v1/chat prefix.
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Chat).Methods("POST")
	r.HandleFunc("/", h.Chat).Methods("POST")
	r.HandleFunc("/weekly-report", h.WeeklyReport).Methods("POST")
	r.HandleFunc("/weekly-report/latest", h.LatestWeeklyReport).Methods("GET")
}

// ChatRequest represents a chat message request
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the chat reply. Failures are reported in Reply with status 200.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// ReportResponse carries a generated weekly report
type ReportResponse struct {
	Report string `json:"report"`
}

// writeJSON writes v without the standard envelope
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// unavailableReply renders a failed run as user-facing text
func unavailableReply(err error) string {
	return unavailablePrefix + logger.SanitizeString(err.Error(), maxErrorMessageLength)
}

func (h *ChatHandler) configured(w http.ResponseWriter) bool {
	if h.agent == nil || h.reports == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "AI service is not configured")
		return false
	}
	return true
}

// Chat runs the agent for one message from the authenticated user
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	if !h.configured(w) {
		return
	}

	var req ChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message is required")
		return
	}
	if utf8.RuneCountInString(message) > MaxChatMessageLength {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message is too long")
		return
	}

	ctx := ai.WithActor(r.Context(), user.ID)
	result, err := h.agent.Run(ctx, message)
	if err != nil {
		h.logger.Warn("chat_failed",
			zap.String("user_id", user.ID.String()),
			zap.String("message_preview", logger.PreviewMessage(message)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, ChatResponse{Reply: unavailableReply(err)})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: result.Reply})
}

// WeeklyReport generates and stores a weekly report for the authenticated user
func (h *ChatHandler) WeeklyReport(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	if !h.configured(w) {
		return
	}

	ctx := ai.WithActor(r.Context(), user.ID)
	report, err := h.reports.GenerateWeekly(ctx)
	if err != nil {
		// A report that was generated but not saved is still shown
		if errors.Is(err, ai.ErrReportNotStored) && report != nil {
			writeJSON(w, http.StatusOK, ReportResponse{Report: report.Content})
			return
		}
		h.logger.Warn("weekly_report_failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		writeJSON(w, http.StatusOK, ReportResponse{Report: unavailableReply(err)})
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{Report: report.Content})
}

// LatestWeeklyReport returns the most recent stored weekly report
func (h *ChatHandler) LatestWeeklyReport(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	if !h.configured(w) {
		return
	}

	report, err := h.reports.LatestWeekly(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No weekly report yet")
			return
		}
		h.logger.Error("failed_to_load_weekly_report", zap.String("user_id", user.ID.String()), zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load weekly report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}
