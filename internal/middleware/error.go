package middleware

import (
	"net/http"

	logpkg "github.com/benvon/taskflow/internal/logger"
	"github.com/benvon/taskflow/internal/request"
	"go.uber.org/zap"
)

// ErrorHandler recovers panics and answers 500 without exposing details
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", logpkg.SanitizePath(r.URL.Path)),
						zap.String("method", r.Method),
						zap.String("request_id", request.RequestIDFromContext(r.Context())),
					)
					respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
