package middleware

import (
	"net/http"
)

// SecurityHeaders sets security headers on all responses
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// JSON only, nothing to load or run
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			// Chat replies and reports are per-user
			h.Set("Cache-Control", "no-store")

			// HSTS only over TLS, and only when enabled, so local HTTP keeps working
			if enableHSTS && r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
