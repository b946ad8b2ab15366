package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/taskflow/internal/middleware"
	"github.com/benvon/taskflow/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// envelope is the decoded {success, data|error, message, timestamp} body
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return env
}

func testUser(name string) *models.User {
	return &models.User{ID: uuid.New(), Username: name, Email: name + "@example.com"}
}

// serveAs routes req through r with user attached the way the auth middleware does
func serveAs(r *mux.Router, user *models.User, req *http.Request) *httptest.ResponseRecorder {
	if user != nil {
		req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
