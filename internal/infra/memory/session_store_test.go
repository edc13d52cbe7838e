package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/estate-chat/internal/domain/chat"
)

func TestSessionStore_CreateAcquire(t *testing.T) {
	st := NewSessionStore()
	require.NoError(t, st.Create(&domain.Session{ID: "s1"}))
	require.Error(t, st.Create(&domain.Session{ID: "s1"}))
	require.Error(t, st.Create(&domain.Session{}))

	sess, release, err := st.Acquire("s1")
	require.NoError(t, err)
	sess.Append(domain.Message{ID: "m1", Text: "hi"})
	release()

	sess, release, err = st.Acquire("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	release()

	_, _, err = st.Acquire("missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionStore_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := NewSessionStore()
	require.NoError(t, st.Create(&domain.Session{ID: "old", LastSeen: now.Add(-2 * time.Hour)}))
	require.NoError(t, st.Create(&domain.Session{ID: "busy", LastSeen: now.Add(-2 * time.Hour)}))
	require.NoError(t, st.Create(&domain.Session{ID: "fresh", LastSeen: now}))

	_, release, err := st.Acquire("busy")
	require.NoError(t, err)

	removed := st.Sweep(now.Add(-time.Hour))
	require.Equal(t, 1, removed)
	require.Equal(t, 2, st.Len())

	release()
	require.Equal(t, 1, st.Sweep(now.Add(-time.Hour)))
	require.Equal(t, 1, st.Len())
}

func TestSessionStore_AcquireAfterSweepRemoval(t *testing.T) {
	st := NewSessionStore()
	require.NoError(t, st.Create(&domain.Session{ID: "s1"}))

	e := st.entries["s1"]
	e.mu.Lock()

	got := make(chan error, 1)
	go func() {
		_, release, err := st.Acquire("s1")
		if err == nil {
			release()
		}
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	st.mu.Lock()
	delete(st.entries, "s1")
	st.mu.Unlock()
	e.mu.Unlock()

	require.ErrorIs(t, <-got, domain.ErrSessionNotFound)
}

func TestSessionStore_BeginSend(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := NewSessionStore()
	require.NoError(t, st.Create(&domain.Session{ID: "s1", LastSeen: now.Add(-2 * time.Hour)}))

	end, err := st.BeginSend("s1")
	require.NoError(t, err)

	// state stays readable during a send
	_, release, err := st.Acquire("s1")
	require.NoError(t, err)
	release()

	// a session mid-send is never swept
	require.Equal(t, 0, st.Sweep(now))

	second := make(chan struct{})
	go func() {
		end2, err := st.BeginSend("s1")
		if err == nil {
			end2()
		}
		close(second)
	}()
	select {
	case <-second:
		t.Fatal("second send started before the first ended")
	case <-time.After(50 * time.Millisecond):
	}

	end()
	<-second
	require.Equal(t, 1, st.Sweep(now))

	_, err = st.BeginSend("s1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
