package core

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how the data agents of a plan are dispatched.
type Mode string

const (
	// ModeParallel dispatches all data agents concurrently and waits for all.
	ModeParallel Mode = "PARALLEL"
	// ModeSequential dispatches data agents in list order, chaining each
	// result into the prompts of the agents that follow.
	ModeSequential Mode = "SEQUENTIAL"
)

// String implements fmt.Stringer.
func (m Mode) String() string { return string(m) }

// AgentIntent is one row of a coordination plan: which agent to call, the
// prompt targeted at it and the classifier's reason for calling it.
type AgentIntent struct {
	AgentName      string `json:"agent_name"`
	TargetedPrompt string `json:"targeted_prompt"`
	Reason         string `json:"reason"`
}

// CoordinationPlan is the immutable per-turn output of intent classification.
type CoordinationPlan struct {
	Intents []AgentIntent `json:"agents_needed"`
	Mode    Mode          `json:"mode"`
	Summary string        `json:"user_intent_summary,omitempty"`
}

// IsEmpty reports whether the plan names no agents.
func (p CoordinationPlan) IsEmpty() bool { return len(p.Intents) == 0 }

// AgentNames returns the agent names of the plan in list order.
func (p CoordinationPlan) AgentNames() []string {
	names := make([]string, len(p.Intents))
	for i, in := range p.Intents {
		names[i] = in.AgentName
	}
	return names
}

// DataBlock is a single agent's output plus metadata. A non-empty Err marks a
// failed call: the block is excluded from enrichment and rendered as a notice.
type DataBlock struct {
	AgentName string        `json:"agent_name"`
	Content   string        `json:"content"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Err       string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Latency   time.Duration `json:"latency"`
}

// Failed reports whether the block represents a failed call.
func (b DataBlock) Failed() bool { return b.Err != "" }

// Notice renders the inline failure notice for a failed block.
func (b DataBlock) Notice() string {
	return fmt.Sprintf("[%s unavailable: %s]", b.AgentName, b.Err)
}

// AgentTitle turns an agent identifier such as "inventory_specialist" into a
// heading label ("Inventory Specialist").
func AgentTitle(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
