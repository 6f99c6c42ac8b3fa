package agent

import "fmt"

// BaseAgent bundles the identity every agent exposes. Embed it in concrete
// agent implementations and supply an Invoke method to satisfy core.Agent.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent. An empty description is replaced by a
// generated one.
func NewBaseAgent(name, description string) BaseAgent {
	if description == "" {
		description = fmt.Sprintf("Agent %s", name)
	}
	return BaseAgent{name: name, description: description}
}

// Name returns the agent identifier used in plans and logs.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }
