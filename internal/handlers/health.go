package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// healthCheckTimeout bounds each dependency check in extended mode
const healthCheckTimeout = 5 * time.Second

// CheckFunc reports whether one dependency is reachable
type CheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	names  []string
	checks map[string]CheckFunc
}

// NewHealthChecker creates a new health checker with no dependency checks
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{checks: make(map[string]CheckFunc)}
}

// AddCheck registers a dependency checked in extended mode, such as
// "database", "redis" or "rabbitmq"
func (h *HealthChecker) AddCheck(name string, check CheckFunc) *HealthChecker {
	if _, exists := h.checks[name]; !exists {
		h.names = append(h.names, name)
		sort.Strings(h.names)
	}
	h.checks[name] = check
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.names))
		for _, name := range h.names {
			if err := h.run(r.Context(), h.checks[name]); err != nil {
				response.Status = "unhealthy"
				response.Checks[name] = "unhealthy: " + sanitizeErrorMessage(err.Error())
				continue
			}
			response.Checks[name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) run(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return check(ctx)
}
