package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/taskflow/internal/logger"
	"github.com/benvon/taskflow/internal/middleware"
	"github.com/benvon/taskflow/internal/models"
	"github.com/benvon/taskflow/internal/validation"
)

// maxErrorMessageLength bounds messages echoed to clients
const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage strips control characters and bounds the length of
// messages sent to clients
func sanitizeErrorMessage(message string) string {
	return logger.SanitizeString(message, maxErrorMessageLength)
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// decodeBody decodes the request body into dst. On failure the error
// response has already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// Check if error is due to request size limit
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return err
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return err
	}
	return nil
}

// validateRequest runs struct validation, writing a 400 on failure
func validateRequest(w http.ResponseWriter, req any) bool {
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed: "+validation.FormatError(err))
		return false
	}
	return true
}

// decodeJSON decodes and validates the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(w, r, dst); err != nil {
		return false
	}
	return validateRequest(w, dst)
}

// requireUser returns the authenticated user, writing a 401 when there is none
func requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return user
}
