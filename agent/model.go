package agent

import (
	"context"
	"fmt"

	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/model"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description string
	Instruction Instruction
	// Vars are rendered into the instruction template.
	Vars        map[string]any
	Temperature *float64
	Logger      logging.Logger
}

// ModelAgent answers every prompt with a single model completion.
type ModelAgent struct {
	BaseAgent
	llm         model.Model
	instruction Instruction
	vars        map[string]any
	temperature *float64
	logger      logging.Logger
}

// NewModelAgent creates a new model-backed agent.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: NewInstructionFromText("You are a helpful assistant."),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	vars := map[string]any{"agent_name": name}
	for k, v := range opts.Vars {
		vars[k] = v
	}

	return &ModelAgent{
		BaseAgent:   NewBaseAgent(name, opts.Description),
		llm:         llm,
		instruction: opts.Instruction,
		vars:        vars,
		temperature: opts.Temperature,
		logger:      opts.Logger,
	}
}

// Invoke implements core.Agent.
func (a *ModelAgent) Invoke(ctx context.Context, prompt string) (string, error) {
	instructions, err := a.instruction.Resolve(ctx, a.vars)
	if err != nil {
		return "", fmt.Errorf("resolve instruction for %s: %w", a.Name(), err)
	}

	req := model.UserRequest(instructions, prompt)
	req.Temperature = a.temperature

	resp, err := a.llm.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	a.logger.Debug("model agent completed", "agent", a.Name(), "model", a.llm.Info().Name, "finish_reason", resp.FinishReason)
	return resp.Text, nil
}
