package approval

import (
	"context"
	"fmt"

	"github.com/hupe1980/opsmesh/mail"
)

// EmailExecutor sends approved e-mail drafts.
type EmailExecutor struct {
	sender mail.Sender
}

// NewEmailExecutor creates an executor delivering through sender.
func NewEmailExecutor(sender mail.Sender) *EmailExecutor {
	return &EmailExecutor{sender: sender}
}

// Execute implements Executor. The message is taken from the payload or,
// when absent, parsed from the stored draft.
func (e *EmailExecutor) Execute(ctx context.Context, p PendingApproval) (string, error) {
	var msg mail.Message
	switch v := p.Payload.(type) {
	case mail.Message:
		msg = v
	case *mail.Message:
		if v != nil {
			msg = *v
		}
	}
	if msg.To == "" {
		parsed, err := mail.ParseDraft(p.Draft)
		if err != nil {
			return "", err
		}
		msg = parsed
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		return "", err
	}
	return fmt.Sprintf("Email sent successfully to %s (subject: %q).", msg.To, msg.Subject), nil
}
