package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		wantLevel     zapcore.Level
	}{
		{"GET request", "GET", "/healthz", http.StatusOK, zapcore.InfoLevel},
		{"POST request", "POST", "/api/v1/tasks", http.StatusCreated, zapcore.InfoLevel},
		{"404 request", "GET", "/notfound", http.StatusNotFound, zapcore.InfoLevel},
		{"server error", "POST", "/api/v1/chat", http.StatusInternalServerError, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
				_, _ = w.Write([]byte("body"))
			})
			mw := RequestID(Logging(zap.New(core))(handler))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			mw.ServeHTTP(w, req)

			if w.Code != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, w.Code)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("Expected level %s, got %s", tt.wantLevel, entry.Level)
			}
			fields := entry.ContextMap()
			if fields["path"] != tt.path {
				t.Errorf("Expected path %s, got %v", tt.path, fields["path"])
			}
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("Expected status_code %d, got %v", tt.handlerStatus, fields["status_code"])
			}
			if fields["bytes"] != int64(4) {
				t.Errorf("Expected 4 bytes, got %v", fields["bytes"])
			}
			if fields["request_id"] != w.Header().Get("X-Request-ID") {
				t.Errorf("Expected request_id to match response header, got %v", fields["request_id"])
			}
		})
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		wantEvent string
	}{
		{http.StatusOK, ""},
		{http.StatusUnauthorized, "security_event"},
		{http.StatusForbidden, "security_event"},
		{http.StatusTooManyRequests, "rate_limit_violation"},
	}
	for _, tt := range tests {
		core, logs := observer.New(zapcore.DebugLevel)
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})
		req := httptest.NewRequest("GET", "/api/v1/tasks", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		Audit(zap.New(core))(handler).ServeHTTP(httptest.NewRecorder(), req)

		if tt.wantEvent == "" {
			if logs.Len() != 0 {
				t.Errorf("status %d: expected no audit entry, got %d", tt.status, logs.Len())
			}
			continue
		}
		entries := logs.FilterMessage(tt.wantEvent).All()
		if len(entries) != 1 {
			t.Fatalf("status %d: expected one %s entry, got %d", tt.status, tt.wantEvent, len(entries))
		}
		if ip := entries[0].ContextMap()["ip"]; ip != "203.0.113.7" {
			t.Errorf("status %d: expected client ip from X-Forwarded-For, got %v", tt.status, ip)
		}
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get("X-Request-ID")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-abc.123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-abc.123" || seen != got {
		t.Errorf("Expected incoming id to propagate, got %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "bad id\nwith newline")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got == "" || got == "bad id\nwith newline" {
		t.Errorf("Expected malformed id to be replaced, got %q", got)
	}
}
