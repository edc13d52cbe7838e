package memory

import (
	"fmt"
	"sync"
	"time"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

type entry struct {
	mu      sync.Mutex // guards session
	sending sync.Mutex // held for a whole send round trip
	session *domain.Session
}

// SessionStore keeps sessions in process memory. State locks are short;
// the send guard is held across backend calls so sends on one session run
// one at a time while its page can still be read.
type SessionStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[string]*entry)}
}

func (s *SessionStore) Create(sess *domain.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[sess.ID]; exists {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	s.entries[sess.ID] = &entry{session: sess}
	return nil
}

func (s *SessionStore) Acquire(id string) (*domain.Session, func(), error) {
	e, err := s.lockEntry(id, func(e *entry) *sync.Mutex { return &e.mu })
	if err != nil {
		return nil, nil, err
	}
	return e.session, e.mu.Unlock, nil
}

func (s *SessionStore) BeginSend(id string) (func(), error) {
	e, err := s.lockEntry(id, func(e *entry) *sync.Mutex { return &e.sending })
	if err != nil {
		return nil, err
	}
	return e.sending.Unlock, nil
}

// lockEntry locks one of the entry's mutexes and checks the entry was not
// swept while waiting for it.
func (s *SessionStore) lockEntry(id string, pick func(*entry) *sync.Mutex) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	mu := pick(e)
	mu.Lock()
	s.mu.RLock()
	current := s.entries[id]
	s.mu.RUnlock()
	if current != e {
		mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

// Sweep drops sessions not seen since idleBefore. Sessions busy with a
// request or a send are left alone.
func (s *SessionStore) Sweep(idleBefore time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if !e.sending.TryLock() {
			continue
		}
		if e.mu.TryLock() {
			if e.session.LastSeen.Before(idleBefore) {
				delete(s.entries, id)
				removed++
			}
			e.mu.Unlock()
		}
		e.sending.Unlock()
	}
	return removed
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
