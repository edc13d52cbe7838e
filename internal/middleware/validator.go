package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)
	uploadIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidateSessionID checks the client-generated session id. The backend
// stores it in a 100 character column.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session_id cannot be empty")
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid session_id format (alphanumeric, dash, underscore only, max 100 chars)")
	}
	return nil
}

// ValidateUploadID checks an upload id before it is put into a backend path.
func ValidateUploadID(id string) error {
	if !uploadIDPattern.MatchString(id) {
		return fmt.Errorf("invalid upload id: %q", id)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ClampMessage cuts a message to the backend's 5000 character limit.
func ClampMessage(s string) string {
	const maxRunes = 5000
	if len(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}
