package session

import (
	"context"
	"sync"

	"github.com/hupe1980/opsmesh/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access. Each
// returned session is cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Get returns an existing session (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}
	return s.createSessionLocked(sessionID).Clone(), nil
}

// Create forces the creation (or overwriting) of a session with the given id.
func (s *InMemoryStore) Create(ctx context.Context, sessionID string) (*core.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSessionLocked(sessionID).Clone(), nil
}

// AppendEvent adds an event to an existing or newly created session.
func (s *InMemoryStore) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.createSessionLocked(sessionID)
	}
	sess.AddEvent(ev)
	return nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// createSessionLocked allocates and stores a new session; caller must already
// hold the write lock.
func (s *InMemoryStore) createSessionLocked(sessionID string) *core.Session {
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	return sess
}
