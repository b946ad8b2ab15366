package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DefaultRequestTimeout applies when no timeout is configured
const DefaultRequestTimeout = 30 * time.Second

// timeoutBody is the envelope written when the deadline passes at the given time
func timeoutBody(path string, at time.Time) string {
	b, _ := json.Marshal(ErrorResponse{
		Success:   false,
		Error:     "Service Unavailable",
		Message:   "Request timed out",
		Timestamp: at.UTC().Format(time.RFC3339),
		Path:      path,
	})
	return string(b)
}

// Timeout cancels the request context after timeout and answers 503 if the
// handler has not responded by then
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			deadline, _ := ctx.Deadline()

			w.Header().Set("Content-Type", "application/json")
			body := timeoutBody(r.URL.Path, deadline)
			http.TimeoutHandler(next, timeout, body).ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Deadline cancels the request context after timeout but leaves the response
// to the handler. Routes that report failures in-band (chat) use it so a
// cancelled run still produces the handler's own reply.
func Deadline(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
