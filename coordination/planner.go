// Package coordination executes a CoordinationPlan: it dispatches data agents
// in parallel or in sequence, enriches action agents with the data gathered,
// aggregates every result into one response and detects approval requests.
package coordination

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/opsmesh/approval"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/dispatch"
	"github.com/hupe1980/opsmesh/history"
	"github.com/hupe1980/opsmesh/logging"
)

// Phase is a state of the planner's per-turn state machine.
type Phase string

const (
	PhasePlanning    Phase = "PLANNING"
	PhaseDispatching Phase = "DISPATCHING"
	PhaseEnriching   Phase = "ENRICHING"
	PhaseAggregating Phase = "AGGREGATING"
	PhaseDone        Phase = "DONE"
)

const (
	// DefaultEnrichmentHeader introduces upstream agent output in a prompt.
	DefaultEnrichmentHeader = "[Context from other agents:]"
	// DefaultEmptyText is the aggregate when no agent produced anything.
	DefaultEmptyText = "No data available."
)

// ErrUnknownAgent marks intents naming an agent that is not registered.
var ErrUnknownAgent = errors.New("unknown agent")

// Resolver finds agents by name. *agent.Registry satisfies it.
type Resolver interface {
	Lookup(name string) (core.Agent, bool)
	IsAction(name string) bool
}

// Invoker performs agent calls. *dispatch.Dispatcher satisfies it.
type Invoker interface {
	NewCall(agent core.Agent, sessionID, prompt string) dispatch.Call
	Invoke(ctx context.Context, call dispatch.Call) (dispatch.Result, error)
}

// Input is everything the planner needs for one turn.
type Input struct {
	SessionID     string
	Plan          core.CoordinationPlan
	ContextWindow string
}

// Outcome is the result of one turn.
type Outcome struct {
	Text string
	// Blocks holds one entry per data intent in plan order.
	Blocks []core.DataBlock
	// ActionBlocks holds one entry per action intent in plan order.
	ActionBlocks []core.DataBlock
	// Approval is the approval request detected in an action result, if any.
	Approval *approval.Request
	Phases   []Phase
	// NoAgents reports that the plan was empty and nothing was dispatched.
	NoAgents bool
}

// Options configures a Planner.
type Options struct {
	Detector         approval.Detector
	EnrichmentHeader string
	EmptyText        string
	// MaxConcurrency bounds parallel dispatches. Zero means unbounded.
	MaxConcurrency int
	Now            func() time.Time
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
}

// Planner executes coordination plans. Safe for concurrent use.
type Planner struct {
	agents  Resolver
	invoker Invoker
	opts    Options
	tracer  trace.Tracer
}

// New creates a Planner.
func New(agents Resolver, invoker Invoker, optFns ...func(o *Options)) *Planner {
	opts := Options{
		EnrichmentHeader: DefaultEnrichmentHeader,
		EmptyText:        DefaultEmptyText,
		Now:              time.Now,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EnrichmentHeader == "" {
		opts.EnrichmentHeader = DefaultEnrichmentHeader
	}
	if opts.EmptyText == "" {
		opts.EmptyText = DefaultEmptyText
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Planner{
		agents:  agents,
		invoker: invoker,
		opts:    opts,
		tracer:  opts.TracerProvider.Tracer("github.com/hupe1980/opsmesh/coordination"),
	}
}

// Execute runs the plan. It never fails: agent errors become failed blocks
// rendered as inline notices.
func (p *Planner) Execute(ctx context.Context, in Input) Outcome {
	ctx, span := p.tracer.Start(ctx, "coordination.execute", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("coordination.mode", in.Plan.Mode.String()),
		attribute.Int("coordination.intents", len(in.Plan.Intents)),
	))
	defer span.End()

	var out Outcome
	p.enter(&out, in, PhasePlanning)

	if in.Plan.IsEmpty() {
		out.NoAgents = true
		p.enter(&out, in, PhaseDone)
		return out
	}

	var data, actions []core.AgentIntent
	for _, intent := range in.Plan.Intents {
		if p.agents.IsAction(intent.AgentName) {
			actions = append(actions, intent)
		} else {
			data = append(data, intent)
		}
	}

	p.enter(&out, in, PhaseDispatching)
	if in.Plan.Mode == core.ModeSequential {
		out.Blocks = p.dispatchSequential(ctx, in, data)
	} else {
		out.Blocks = p.dispatchParallel(ctx, in, data)
	}

	if len(actions) > 0 {
		p.enter(&out, in, PhaseEnriching)
		enrichment := p.enrichment(out.Blocks)
		for _, intent := range actions {
			block := p.call(ctx, in, intent, withEnrichment(intent.TargetedPrompt, enrichment))
			out.ActionBlocks = append(out.ActionBlocks, block)
			if out.Approval == nil && !block.Failed() && p.opts.Detector != nil {
				if req, ok := p.opts.Detector.Detect(block.AgentName, block.Content); ok {
					out.Approval = &req
					span.AddEvent("approval.detected", trace.WithAttributes(
						attribute.String("approval.type", string(req.ActionType)),
					))
				}
			}
		}
	}

	p.enter(&out, in, PhaseAggregating)
	out.Text = p.aggregate(out.Blocks, out.ActionBlocks)

	p.enter(&out, in, PhaseDone)
	return out
}

func (p *Planner) enter(out *Outcome, in Input, phase Phase) {
	out.Phases = append(out.Phases, phase)
	p.opts.Logger.Debug("coordination phase",
		"session_id", in.SessionID,
		"phase", string(phase),
		"mode", in.Plan.Mode.String(),
	)
}

// dispatchParallel calls every data intent concurrently and waits for all.
// Blocks keep plan order regardless of completion order.
func (p *Planner) dispatchParallel(ctx context.Context, in Input, intents []core.AgentIntent) []core.DataBlock {
	blocks := make([]core.DataBlock, len(intents))
	g, gctx := errgroup.WithContext(ctx)
	if p.opts.MaxConcurrency > 0 {
		g.SetLimit(p.opts.MaxConcurrency)
	}
	for i, intent := range intents {
		g.Go(func() error {
			blocks[i] = p.call(gctx, in, intent, intent.TargetedPrompt)
			return nil
		})
	}
	_ = g.Wait()
	return blocks
}

// dispatchSequential calls data intents in plan order. Each prompt carries
// the output of every earlier successful intent.
func (p *Planner) dispatchSequential(ctx context.Context, in Input, intents []core.AgentIntent) []core.DataBlock {
	blocks := make([]core.DataBlock, 0, len(intents))
	for _, intent := range intents {
		prompt := withEnrichment(intent.TargetedPrompt, p.enrichment(blocks))
		blocks = append(blocks, p.call(ctx, in, intent, prompt))
	}
	return blocks
}

func (p *Planner) call(ctx context.Context, in Input, intent core.AgentIntent, prompt string) core.DataBlock {
	block := core.DataBlock{AgentName: intent.AgentName, Reason: intent.Reason}

	a, ok := p.agents.Lookup(intent.AgentName)
	if !ok {
		block.Err = ErrUnknownAgent.Error()
		block.Timestamp = p.opts.Now()
		p.opts.Logger.Warn("unknown agent in plan", "session_id", in.SessionID, "agent", intent.AgentName)
		return block
	}

	res, err := p.invoker.Invoke(ctx, p.invoker.NewCall(a, in.SessionID, history.Prepend(in.ContextWindow, prompt)))
	block.Timestamp = p.opts.Now()
	block.Attempts = res.Attempts
	block.Latency = res.Latency
	if err != nil {
		p.opts.Logger.Warn("agent failed", "session_id", in.SessionID, "agent", intent.AgentName, "error", err)
		block.Err = reason(err)
		return block
	}
	block.Content = res.Text
	return block
}

// enrichment renders the successful blocks grouped by agent, in order of
// first appearance, each under a titled heading.
func (p *Planner) enrichment(blocks []core.DataBlock) string {
	var order []string
	grouped := map[string][]string{}
	for _, b := range blocks {
		if b.Failed() || b.Content == "" {
			continue
		}
		if _, seen := grouped[b.AgentName]; !seen {
			order = append(order, b.AgentName)
		}
		grouped[b.AgentName] = append(grouped[b.AgentName], b.Content)
	}
	if len(order) == 0 {
		return ""
	}

	sections := make([]string, len(order))
	for i, name := range order {
		sections[i] = "[" + core.AgentTitle(name) + ":]\n" + strings.Join(grouped[name], "\n\n")
	}
	return p.opts.EnrichmentHeader + "\n" + strings.Join(sections, "\n\n")
}

func withEnrichment(prompt, enrichment string) string {
	if enrichment == "" {
		return prompt
	}
	return prompt + "\n\n" + enrichment
}

func (p *Planner) aggregate(blocks, actions []core.DataBlock) string {
	parts := make([]string, 0, len(blocks)+len(actions))
	for _, list := range [][]core.DataBlock{blocks, actions} {
		for _, b := range list {
			switch {
			case b.Failed():
				parts = append(parts, b.Notice())
			case b.Content != "":
				parts = append(parts, b.Content)
			}
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if text == "" {
		return p.opts.EmptyText
	}
	return text
}

func reason(err error) string {
	var derr *dispatch.Error
	if errors.As(err, &derr) {
		return derr.Reason()
	}
	return err.Error()
}
