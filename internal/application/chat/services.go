package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/estate-chat/internal/application"
	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

// Texts shown in the conversation when a round trip fails.
const (
	UploadFailedText = "Sorry, I couldn't upload your file. Please try again."
	ChatFailedText   = "Sorry, something went wrong while analysing your question. Please try again."
)

var newID = func() string { return uuid.NewString() }

type Service struct {
	Store   domain.SessionStore
	Backend domain.Backend
	Archive domain.Archive // nil disables archiving
	Clock   application.Clock
	Logger  *slog.Logger
}

// SendCommand is one press of the send button.
type SendCommand struct {
	Text     string
	Location string
	File     *domain.UploadedFile // replaces the held file when set
}

// SendResult describes what happened to one send. Backend failures are not
// returned as errors: they end up as a bot message in the conversation.
type SendResult struct {
	Reply     domain.Message
	Uploaded  *domain.UploadReceipt
	UploadErr error
	ChatErr   error
}

func (r *SendResult) Failed() bool { return r.UploadErr != nil || r.ChatErr != nil }

// Start opens a new, empty session.
func (s *Service) Start() (domain.Session, error) {
	now := s.Clock.Now()
	sess := &domain.Session{ID: newID(), CreatedAt: now, LastSeen: now}
	if err := s.Store.Create(sess); err != nil {
		return domain.Session{}, err
	}
	s.logger().Info("session started", "session_id", sess.ID)
	return sess.Clone(), nil
}

// Snapshot returns a copy of the session and marks it as seen.
func (s *Service) Snapshot(sessionID string) (domain.Session, error) {
	sess, release, err := s.Store.Acquire(sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	defer release()
	sess.LastSeen = s.Clock.Now()
	return sess.Clone(), nil
}

// DetachFile forgets the held spreadsheet; later sends go without upload.
func (s *Service) DetachFile(sessionID string) error {
	sess, release, err := s.Store.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()
	sess.File = nil
	sess.LastSeen = s.Clock.Now()
	return nil
}

// Send appends the user's message, uploads the held file if there is one,
// then asks the backend. A failed upload stops before the chat call. The
// session stays readable while the backend works; sends on one session run
// one at a time.
func (s *Service) Send(ctx context.Context, sessionID string, cmd SendCommand) (*SendResult, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if cmd.File != nil {
		if err := domain.ValidateFileName(cmd.File.Name, cmd.File.ContentType); err != nil {
			return nil, err
		}
	}

	end, err := s.Store.BeginSend(sessionID)
	if err != nil {
		return nil, err
	}
	defer end()

	sess, release, err := s.Store.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	sess.LastSeen = s.Clock.Now()
	sess.Append(s.message(text, true))
	if cmd.File != nil {
		sess.File = cmd.File
	}
	file := sess.File
	release()

	log := s.logger().With("session_id", sessionID)
	res := &SendResult{}
	req := domain.ChatRequest{
		Message:   text,
		SessionID: sessionID,
		Location:  strings.TrimSpace(cmd.Location),
	}

	if file != nil {
		receipt, err := s.Backend.Upload(ctx, sessionID, file)
		if err != nil {
			log.Error("upload failed", "file", file.Name, "err", err)
			res.UploadErr = fmt.Errorf("upload %s: %w", file.Name, err)
			res.Reply = s.message(UploadFailedText, false)
			return res, s.finish(sessionID, res.Reply, nil)
		}
		log.Info("file uploaded", "file", file.Name, "upload_id", receipt.ID, "rows", receipt.RowCount)
		res.Uploaded = &receipt
		req.DataUploadID = receipt.ID
		s.archive(ctx, log, sessionID, file)
	}

	start := time.Now()
	reply, err := s.Backend.Chat(ctx, req)
	if err != nil {
		log.Error("chat failed", "err", err)
		res.ChatErr = fmt.Errorf("chat: %w", err)
		res.Reply = s.message(ChatFailedText, false)
		return res, s.finish(sessionID, res.Reply, nil)
	}
	log.Info("chat answered", "duration", time.Since(start), "has_chart", len(reply.Chart) > 0, "has_table", len(reply.Table) > 0)

	res.Reply = s.message(reply.Response, false)
	return res, s.finish(sessionID, res.Reply, domain.NewAnalysisResult(reply, res.Reply.Timestamp))
}

// finish appends the bot's message and, on success, the new result.
func (s *Service) finish(sessionID string, reply domain.Message, result *domain.AnalysisResult) error {
	sess, release, err := s.Store.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()
	sess.LastSeen = s.Clock.Now()
	sess.Append(reply)
	if result != nil {
		sess.Result = result
	}
	return nil
}

// Sweep removes sessions idle for longer than maxIdle.
func (s *Service) Sweep(maxIdle time.Duration) int {
	n := s.Store.Sweep(s.Clock.Now().Add(-maxIdle))
	if n > 0 {
		s.logger().Info("idle sessions swept", "removed", n, "remaining", s.Store.Len())
	}
	return n
}

func (s *Service) archive(ctx context.Context, log *slog.Logger, sessionID string, f *domain.UploadedFile) {
	if s.Archive == nil {
		return
	}
	key, err := s.Archive.Put(ctx, sessionID, f)
	if err != nil {
		// archive failures never reach the conversation
		log.Warn("archive upload failed", "file", f.Name, "err", err)
		return
	}
	log.Debug("file archived", "key", key)
}

func (s *Service) message(text string, isUser bool) domain.Message {
	return domain.Message{
		ID:        newID(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: s.Clock.Now(),
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// IsValidation reports whether err comes from checking user input.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrEmptyMessage) || errors.Is(err, domain.ErrUnsupportedFile)
}
