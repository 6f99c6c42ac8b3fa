package approval

import (
	"context"
	"time"
)

// ActionType enumerates approval-gated actions.
type ActionType string

// ActionEmailSend sends an e-mail draft through the mail collaborator.
const ActionEmailSend ActionType = "email_send"

// Request is a detected approval-gated action, not yet stored.
type Request struct {
	AgentName  string
	ActionType ActionType
	// Payload is the opaque data the executor needs (mail.Message for
	// ActionEmailSend).
	Payload any
	// Draft is the agent output the user is asked to approve.
	Draft string
}

// PendingApproval is a stored request awaiting the user's reply.
type PendingApproval struct {
	SessionID  string     `json:"session_id"`
	AgentName  string     `json:"agent_name"`
	ActionType ActionType `json:"action_type"`
	Payload    any        `json:"payload,omitempty"`
	Draft      string     `json:"draft"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Executor performs an approved action and returns a user-facing message.
type Executor interface {
	Execute(ctx context.Context, p PendingApproval) (string, error)
}

// ExecutorFunc adapts a function into an Executor.
type ExecutorFunc func(ctx context.Context, p PendingApproval) (string, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, p PendingApproval) (string, error) {
	return f(ctx, p)
}

// Status is the terminal state reached by Resolve.
type Status string

const (
	// StatusExecuted means the action ran successfully.
	StatusExecuted Status = "executed"
	// StatusExecutionFailed means the action was approved but failed.
	StatusExecutionFailed Status = "execution_failed"
	// StatusDiscarded means the user rejected the action.
	StatusDiscarded Status = "discarded"
	// StatusExpired means the approval window had passed.
	StatusExpired Status = "expired"
)

// Resolution describes how a pending approval was resolved.
type Resolution struct {
	Status   Status
	Approval PendingApproval
	Message  string
	Err      error
}
