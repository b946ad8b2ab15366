package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxUserIDLength is the maximum length for user IDs in logs (UUIDs are 36 chars)
	MaxUserIDLength = 128
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxMessagePreviewLength bounds chat message previews
	MaxMessagePreviewLength = 120
)

// SanitizeString strips control characters, repairs UTF-8 and truncates to
// maxLength runes. A non-positive maxLength uses MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	count := 0
	for _, r := range s {
		if !unicode.IsPrint(r) && r != ' ' && r != '\t' {
			// newlines are dropped too so one request stays one log line
			continue
		}
		if count == maxLength {
			builder.WriteString("...")
			break
		}
		builder.WriteRune(r)
		count++
	}
	return builder.String()
}

// SanitizePath sanitizes a URL path for logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError sanitizes an error message for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID sanitizes a user ID for logging
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// PreviewMessage returns a short single-line preview of a chat message
func PreviewMessage(message string) string {
	return SanitizeString(message, MaxMessagePreviewLength)
}
