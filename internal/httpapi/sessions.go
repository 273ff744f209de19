// Package httpapi is the thin rendering-shell adapter: it exposes each
// session's RenderState as JSON and forwards the shell intents into the
// coordinator. No booking logic lives here.
package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kevcor13/client-interface1/internal/booking"
	"github.com/kevcor13/client-interface1/internal/metrics"
)

// Session pairs one visitor with their coordinator and its poll loop.
type Session struct {
	ID          string
	Coordinator *booking.Coordinator
	cancel      context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen) > timeout
}

// close tears the session down: poll loop cancelled, coordinator closed.
func (s *Session) close() {
	s.Coordinator.Close()
	s.cancel()
}

// CoordinatorFactory builds a fresh coordinator per session.
type CoordinatorFactory func() *booking.Coordinator

// SessionStore manages the live sessions.
type SessionStore struct {
	factory CoordinatorFactory
	timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates the store.
func NewSessionStore(factory CoordinatorFactory, timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		factory:  factory,
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and its poll loop.
func (ss *SessionStore) Create() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	coord := ss.factory()

	sess := &Session{
		ID:          uuid.NewString(),
		Coordinator: coord,
		cancel:      cancel,
		lastSeen:    time.Now(),
	}

	ss.mu.Lock()
	ss.sessions[sess.ID] = sess
	metrics.SetActiveSessions(len(ss.sessions))
	ss.mu.Unlock()

	coord.Start(ctx)
	return sess
}

// Get returns a live session and refreshes its idle timer.
func (ss *SessionStore) Get(id string) (*Session, bool) {
	ss.mu.Lock()
	sess, ok := ss.sessions[id]
	ss.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.touch()
	return sess, true
}

// Delete removes and closes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	sess, ok := ss.sessions[id]
	if ok {
		delete(ss.sessions, id)
	}
	metrics.SetActiveSessions(len(ss.sessions))
	ss.mu.Unlock()

	if ok {
		sess.close()
	}
}

// Cleanup closes idle sessions. Returns how many were removed.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	var expired []*Session
	for id, sess := range ss.sessions {
		if sess.expired(ss.timeout) {
			delete(ss.sessions, id)
			expired = append(expired, sess)
		}
	}
	metrics.SetActiveSessions(len(ss.sessions))
	ss.mu.Unlock()

	for _, sess := range expired {
		sess.close()
	}
	return len(expired)
}

// RunCleanup sweeps for idle sessions until the context ends.
func (ss *SessionStore) RunCleanup(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ss.Cleanup()
		}
	}
}

// Len reports the number of live sessions.
func (ss *SessionStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}
