package core

import "context"

// Agent is the capability every specialised agent exposes to the
// coordination engine: natural-language prompt in, natural-language text out.
//
// Implementations must respect context cancellation. The engine treats the
// returned text as opaque; sanitising and aggregation happen upstream.
type Agent interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, prompt string) (string, error)
}

// AgentFunc adapts an ordinary function into an Agent.
type AgentFunc struct {
	AgentName        string
	AgentDescription string
	Fn               func(ctx context.Context, prompt string) (string, error)
}

// Name returns the agent name.
func (f AgentFunc) Name() string { return f.AgentName }

// Description returns the agent description.
func (f AgentFunc) Description() string { return f.AgentDescription }

// Invoke calls the wrapped function.
func (f AgentFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f.Fn(ctx, prompt)
}
