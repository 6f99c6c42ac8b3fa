package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/opsmesh/logging"
)

// DefaultTTL is how long an approval stays pending.
const DefaultTTL = 30 * time.Minute

var (
	// ErrExecutionFailure wraps failures of an approved action.
	ErrExecutionFailure = errors.New("approval execution failed")
	// ErrNoExecutor is returned when no executor handles the action type.
	ErrNoExecutor = errors.New("no executor registered for action type")
)

// Options configures a Manager.
type Options struct {
	TTL       time.Duration
	Replies   ReplyClassifier
	Executors map[ActionType]Executor
	Logger    logging.Logger
	Now       func() time.Time
}

// Manager stores at most one PendingApproval per session and resolves it
// exactly once. All methods are safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	pending   map[string]PendingApproval
	ttl       time.Duration
	replies   ReplyClassifier
	executors map[ActionType]Executor
	logger    logging.Logger
	now       func() time.Time
}

// NewManager creates a Manager.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		TTL:       DefaultTTL,
		Replies:   NewPhraseReplyClassifier(nil, nil),
		Executors: map[ActionType]Executor{},
		Logger:    logging.NoOpLogger{},
		Now:       time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		pending:   make(map[string]PendingApproval),
		ttl:       opts.TTL,
		replies:   opts.Replies,
		executors: opts.Executors,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// Register sets the executor for an action type.
func (m *Manager) Register(t ActionType, e Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executors[t] = e
}

// Propose stores req as the session's pending approval, replacing any
// previous one.
func (m *Manager) Propose(sessionID string, req Request) PendingApproval {
	p := PendingApproval{
		SessionID:  sessionID,
		AgentName:  req.AgentName,
		ActionType: req.ActionType,
		Payload:    req.Payload,
		Draft:      req.Draft,
		CreatedAt:  m.now().UTC(),
	}
	m.mu.Lock()
	_, replaced := m.pending[sessionID]
	m.pending[sessionID] = p
	m.mu.Unlock()

	m.logger.Info("approval pending", "session_id", sessionID, "action_type", string(p.ActionType), "replaced", replaced)
	return p
}

// Pending returns the session's pending approval. Expired entries are
// removed and reported as absent.
func (m *Manager) Pending(sessionID string) (PendingApproval, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[sessionID]
	if !ok {
		return PendingApproval{}, false
	}
	if m.expired(p) {
		delete(m.pending, sessionID)
		m.logger.Info("approval expired", "session_id", sessionID, "action_type", string(p.ActionType))
		return PendingApproval{}, false
	}
	return p, true
}

// Clear drops any pending approval for the session.
func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sessionID)
}

// Len returns the number of stored approvals, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Resolve interprets reply against the session's pending approval. It
// returns false when nothing is pending or the reply is neither affirmative
// nor negative; the approval then stays pending and the caller should treat
// the message as an ordinary turn.
//
// An affirmative or negative reply always clears the entry before any side
// effect runs, so concurrent replies execute the action at most once.
func (m *Manager) Resolve(ctx context.Context, sessionID, reply string) (Resolution, bool) {
	kind := m.replies.ClassifyReply(reply)

	m.mu.Lock()
	p, ok := m.pending[sessionID]
	if !ok {
		m.mu.Unlock()
		return Resolution{}, false
	}
	expired := m.expired(p)
	if kind == ReplyOther {
		if expired {
			delete(m.pending, sessionID)
		}
		m.mu.Unlock()
		return Resolution{}, false
	}
	delete(m.pending, sessionID)
	executor := m.executors[p.ActionType]
	m.mu.Unlock()

	switch {
	case expired:
		m.logger.Info("approval reply after expiry", "session_id", sessionID, "action_type", string(p.ActionType))
		return Resolution{
			Status:   StatusExpired,
			Approval: p,
			Message:  fmt.Sprintf("The pending %s approval expired after %s and was not executed. Please ask again to create a new draft.", describe(p.ActionType), m.ttl),
		}, true
	case kind == ReplyNegative:
		m.logger.Info("approval discarded", "session_id", sessionID, "action_type", string(p.ActionType))
		return Resolution{
			Status:   StatusDiscarded,
			Approval: p,
			Message:  fmt.Sprintf("Cancelled. The %s draft was discarded.", describe(p.ActionType)),
		}, true
	}

	return m.execute(ctx, executor, p), true
}

func (m *Manager) execute(ctx context.Context, executor Executor, p PendingApproval) Resolution {
	if executor == nil {
		err := fmt.Errorf("%w: %w %q", ErrExecutionFailure, ErrNoExecutor, p.ActionType)
		m.logger.Error("approval execution failed", "session_id", p.SessionID, "error", err.Error())
		return Resolution{Status: StatusExecutionFailed, Approval: p, Message: fmt.Sprintf("Failed to execute the approved %s action: no handler is configured.", describe(p.ActionType)), Err: err}
	}

	msg, cause := executor.Execute(ctx, p)
	if cause != nil {
		err := fmt.Errorf("%w: %w", ErrExecutionFailure, cause)
		m.logger.Error("approval execution failed", "session_id", p.SessionID, "action_type", string(p.ActionType), "error", err.Error())
		return Resolution{Status: StatusExecutionFailed, Approval: p, Message: fmt.Sprintf("Failed to execute the approved %s action: %v", describe(p.ActionType), cause), Err: err}
	}

	m.logger.Info("approval executed", "session_id", p.SessionID, "action_type", string(p.ActionType))
	return Resolution{Status: StatusExecuted, Approval: p, Message: msg}
}

func (m *Manager) expired(p PendingApproval) bool {
	return m.ttl > 0 && m.now().Sub(p.CreatedAt) > m.ttl
}

func describe(t ActionType) string {
	if t == ActionEmailSend {
		return "email"
	}
	return string(t)
}
