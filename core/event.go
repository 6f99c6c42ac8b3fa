package core

import (
	"time"

	"github.com/google/uuid"
)

// Conversational roles recorded on events.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AuthorUser is the author recorded for end-user messages.
const AuthorUser = "user"

// Event is one immutable entry in a session's conversation log. Author is
// either "user" or the name of the agent (or orchestrator) that produced the
// text. Text may be empty for malformed or partial upstream content.
type Event struct {
	ID             string            `json:"id"`
	InvocationID   string            `json:"invocation_id,omitempty"`
	Author         string            `json:"author"`
	Role           string            `json:"role"`
	Text           string            `json:"text"`
	Timestamp      time.Time         `json:"timestamp"`
	CustomMetadata map[string]string `json:"custom_metadata,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
	}
}

// NewUserMessageEvent creates a user-authored text message event.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, AuthorUser)
	e.Role = RoleUser
	e.Text = message
	return e
}

// NewMessageEvent creates an assistant message event authored by an agent or
// the orchestrator.
func NewMessageEvent(invocationID, author, message string) Event {
	e := NewEvent(invocationID, author)
	e.Role = RoleAssistant
	e.Text = message
	return e
}

// IsUser reports whether the event was written by the end user. Events
// without a role fall back to the author field.
func (e Event) IsUser() bool {
	if e.Role != "" {
		return e.Role == RoleUser
	}
	return e.Author == AuthorUser
}

// NewID generates a new unique identifier for events, invocations and
// protocol messages.
func NewID() string { return uuid.NewString() }
