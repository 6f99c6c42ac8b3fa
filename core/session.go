package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores that do not create sessions lazily.
var ErrSessionNotFound = errors.New("session not found")

// Session is a conversational container holding an append-only, strictly
// ordered event history. It is safe for concurrent access.
//
// Contract:
//   - AddEvent updates the Updated timestamp
//   - GetEvents returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of maps/slices for safe divergence.
type Session struct {
	ID       string            `json:"id"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{ID: id, Events: []Event{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// AddEvent appends an event to the history updating Updated timestamp.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now().UTC()
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// LastEvents returns a copy of the newest n events in arrival order.
func (s *Session) LastEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return []Event{}
	}
	start := len(s.Events) - n
	if start < 0 {
		start = 0
	}
	events := make([]Event, len(s.Events)-start)
	copy(events, s.Events[start:])
	return events
}

// Len returns the number of events recorded.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Events)
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Events: make([]Event, len(s.Events)), Created: s.Created, Updated: s.Updated, Metadata: make(map[string]string, len(s.Metadata))}
	copy(clone.Events, s.Events)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// SessionStore persists sessions and their append-only event history.
//
// Get lazily creates an empty session when none exists so callers can treat
// every session id as valid. Implementations must serialize appends per
// session to keep arrival order.
type SessionStore interface {
	Create(ctx context.Context, id string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	AppendEvent(ctx context.Context, sessionID string, event Event) error
	Delete(ctx context.Context, id string) error
}
