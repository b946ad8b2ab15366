package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRateLimited indicates the API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded indicates the API quota was exceeded
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNotConfigured indicates the model client is missing required configuration
	ErrNotConfigured = errors.New("AI service not configured")
)

// codeInsufficientQuota is the provider error code for an exhausted account
const codeInsufficientQuota = "insufficient_quota"

// Retry schedules per failure class: first delay and ceiling
const (
	quotaBaseDelay     = time.Hour
	quotaMaxDelay      = 24 * time.Hour
	rateLimitBaseDelay = time.Minute
	rateLimitMaxDelay  = 15 * time.Minute
	defaultBaseDelay   = 5 * time.Second
	defaultMaxDelay    = 5 * time.Minute
	maxBackoffShift    = 10
)

// APIError is a failed provider response. Only the model client builds it,
// from the SDK's typed error, so classification never depends on error text.
type APIError struct {
	Message    string
	Type       string
	Code       string
	StatusCode int
	// RetryAfter is the provider's Retry-After hint, zero when absent
	RetryAfter  time.Duration
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// Unwrap lets errors.Is match ErrRateLimited and ErrQuotaExceeded
func (e *APIError) Unwrap() error {
	switch {
	case e.IsPermanent:
		return ErrQuotaExceeded
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

// IsRateLimitError reports a provider 429 that is not quota exhaustion
func IsRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
	}
	return errors.Is(err, ErrRateLimited)
}

// IsQuotaError reports an exhausted provider account
func IsQuotaError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == codeInsufficientQuota
	}
	return errors.Is(err, ErrQuotaExceeded)
}

// parseRetryAfter reads retry-after-ms or Retry-After (seconds or HTTP date)
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	if h == nil {
		return 0
	}
	if ms, err := strconv.ParseFloat(strings.TrimSpace(h.Get("Retry-After-Ms")), 64); err == nil && ms > 0 {
		return time.Duration(ms * float64(time.Millisecond))
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// backoff doubles base per attempt up to ceiling
func backoff(base, ceiling time.Duration, attempt int) time.Duration {
	shift := min(max(attempt, 0), maxBackoffShift)
	return min(base*time.Duration(1<<uint(shift)), ceiling)
}

// GetRetryDelay calculates the delay before retrying based on error type.
// A provider Retry-After hint longer than the backoff wins.
func GetRetryDelay(err error, attempt int) time.Duration {
	var hint time.Duration
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		hint = apiErr.RetryAfter
	}

	var delay time.Duration
	switch {
	case IsQuotaError(err):
		delay = backoff(quotaBaseDelay, quotaMaxDelay, attempt)
	case IsRateLimitError(err):
		delay = backoff(rateLimitBaseDelay, rateLimitMaxDelay, attempt)
	default:
		delay = backoff(defaultBaseDelay, defaultMaxDelay, attempt)
	}
	return max(delay, hint)
}
