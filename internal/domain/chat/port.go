package chat

import (
	"context"
	"time"
)

// Backend port for the external analysis service.
type Backend interface {
	Upload(ctx context.Context, sessionID string, f *UploadedFile) (UploadReceipt, error)
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)
}

// Archive keeps a copy of uploaded spreadsheets. Optional.
type Archive interface {
	Put(ctx context.Context, sessionID string, f *UploadedFile) (string, error)
}

// SessionStore holds open sessions in memory.
type SessionStore interface {
	Create(s *Session) error
	// Acquire locks the session state until release is called. Hold it
	// briefly; never across a backend call.
	Acquire(id string) (s *Session, release func(), err error)
	// BeginSend serializes sends on one session without blocking readers.
	BeginSend(id string) (end func(), err error)
	Sweep(idleBefore time.Time) int
	Len() int
}
