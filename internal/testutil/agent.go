package testutil

import (
	"context"
	"sync"
)

// Reply is one scripted agent answer.
type Reply struct {
	Text string
	Err  error
	// Block, when set, makes the call wait until the context is done.
	Block bool
}

// ScriptedAgent is a core.Agent fake that returns scripted replies in order
// and records every prompt it receives. The last reply repeats once the
// script is exhausted. Safe for concurrent use.
type ScriptedAgent struct {
	name    string
	mu      sync.Mutex
	replies []Reply
	prompts []string
}

// NewScriptedAgent creates a fake agent answering with the given replies.
func NewScriptedAgent(name string, replies ...Reply) *ScriptedAgent {
	return &ScriptedAgent{name: name, replies: replies}
}

// Text is shorthand for a fake agent that always answers text.
func Text(name, text string) *ScriptedAgent {
	return NewScriptedAgent(name, Reply{Text: text})
}

// Name returns the agent name.
func (a *ScriptedAgent) Name() string { return a.name }

// Description returns a fixed description.
func (a *ScriptedAgent) Description() string { return "scripted " + a.name }

// Invoke records prompt and returns the next scripted reply.
func (a *ScriptedAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	a.mu.Lock()
	idx := len(a.prompts)
	a.prompts = append(a.prompts, prompt)
	var r Reply
	switch {
	case len(a.replies) == 0:
	case idx < len(a.replies):
		r = a.replies[idx]
	default:
		r = a.replies[len(a.replies)-1]
	}
	a.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.Text, r.Err
}

// Prompts returns a copy of all received prompts.
func (a *ScriptedAgent) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// Calls returns the number of invocations.
func (a *ScriptedAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.prompts)
}
