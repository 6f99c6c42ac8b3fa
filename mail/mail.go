// Package mail defines the outbound e-mail collaborator and the draft text
// format produced by the notification agent.
package mail

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrNotConfigured is returned by senders missing credentials.
var ErrNotConfigured = errors.New("mail sender not configured")

// ErrInvalidDraft is returned when a draft lacks a recipient or subject.
var ErrInvalidDraft = errors.New("invalid e-mail draft")

// Message is a plain-text e-mail.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate checks that the message can be delivered.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidDraft)
	}
	if !strings.Contains(m.To, "@") {
		return fmt.Errorf("%w: recipient %q is not an address", ErrInvalidDraft, m.To)
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidDraft)
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function into a Sender.
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

const (
	draftHeader = "[DRAFT EMAIL]"
	draftFooter = "This is a draft. Reply 'yes' to approve sending or 'no' to cancel."
	separator   = "---"
)

// FormatDraft renders msg in the reviewable draft format.
func FormatDraft(msg Message, generated time.Time) string {
	var sb strings.Builder
	sb.WriteString(draftHeader + "\n")
	sb.WriteString("Generated: " + generated.UTC().Format("2006-01-02 15:04:05Z") + "\n")
	sb.WriteString("To: " + msg.To + "\n")
	sb.WriteString("Subject: " + msg.Subject + "\n\n")
	sb.WriteString(msg.Body + "\n\n")
	sb.WriteString(separator + "\n")
	sb.WriteString(draftFooter)
	return sb.String()
}

var (
	toRe      = regexp.MustCompile(`(?im)^\s*\**to:\**\s*(.+?)\s*$`)
	subjectRe = regexp.MustCompile(`(?im)^\s*\**subject:\**\s*(.+?)\s*$`)
)

// ParseDraft extracts recipient, subject and body from draft text. The body
// runs from the line after the subject to the "---" separator (or the end of
// the text).
func ParseDraft(text string) (Message, error) {
	var msg Message
	if m := toRe.FindStringSubmatch(text); m != nil {
		msg.To = strings.Trim(m[1], "<>*` ")
	}
	loc := subjectRe.FindStringSubmatchIndex(text)
	if loc != nil {
		msg.Subject = strings.Trim(text[loc[2]:loc[3]], "*` ")
		rest := text[loc[1]:]
		if i := strings.Index(rest, "\n"+separator); i >= 0 {
			rest = rest[:i]
		}
		msg.Body = strings.TrimSpace(rest)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
