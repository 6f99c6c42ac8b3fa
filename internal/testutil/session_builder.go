package testutil

import (
	"fmt"

	"github.com/hupe1980/opsmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").User("hi").Assistant("hello").Build()
type SessionBuilder struct {
	id     string
	events []core.Event
}

// NewSessionBuilder creates a new builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id}
}

// User appends a user message (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.events = append(b.events, core.NewUserMessageEvent("", text))
	return b
}

// Assistant appends an orchestrator message (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	b.events = append(b.events, core.NewMessageEvent("", "orchestrator", text))
	return b
}

// Events appends multiple events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Messages appends n alternating user / assistant messages with numbered
// text ("message-0", "message-1", ...) (chainable).
func (b *SessionBuilder) Messages(n int) *SessionBuilder {
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("message-%d", i)
		if i%2 == 0 {
			b.User(text)
		} else {
			b.Assistant(text)
		}
	}
	return b
}

// Build returns a *core.Session with pre-populated events.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	for _, ev := range b.events {
		s.AddEvent(ev)
	}
	return s
}
