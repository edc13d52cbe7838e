package chat

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrUnsupportedFile = errors.New("unsupported file type (allowed: .xlsx, .xls, .csv)")
	ErrSessionNotFound = errors.New("session not found")
)

// UpstreamError is returned when the analysis backend answers with a non-2xx
// status. Body is kept so callers can relay it.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("backend %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *UpstreamError) HTTPStatusCode() int { return e.Status }
