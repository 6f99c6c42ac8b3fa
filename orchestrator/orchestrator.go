// Package orchestrator runs one conversational turn end to end.
//
// A turn takes the per-session lock, resolves any pending approval, answers
// short conversational replies directly, builds the context window from the
// session history, classifies the message into a coordination plan, executes
// the plan and records the exchange in the session and memory stores.
//
// HandleTurn never returns an error: every failure path resolves to response
// text plus log records and metrics.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/opsmesh/approval"
	"github.com/hupe1980/opsmesh/coordination"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/history"
	"github.com/hupe1980/opsmesh/intent"
	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/memory"
	"github.com/hupe1980/opsmesh/model"
	"github.com/hupe1980/opsmesh/session"
)

const (
	// DefaultClassificationTimeout bounds intent classification.
	DefaultClassificationTimeout = 10 * time.Second
	// DefaultNoAgentsText answers turns no agent could serve.
	DefaultNoAgentsText = "I can help with inventory, company policies, analytics, orders and e-mail notifications. What would you like to do?"
	// Author is recorded on assistant events written by the orchestrator.
	Author = "orchestrator"
)

// Turn modes reported to the TurnObserver.
const (
	ModeApproval       = "approval"
	ModeConversational = "conversational"
	ModeFallback       = "fallback"
	ModeNoAgents       = "no_agents"
)

// DefaultConversationalReplies answer short messages that need no agent.
var DefaultConversationalReplies = map[string]string{
	"yes":       "Great! How can I help you today?",
	"yep":       "Great! What can I do for you?",
	"sure":      "Perfect! How can I assist you?",
	"no":        "No problem. Is there anything else I can help you with?",
	"nope":      "Alright. Feel free to ask if you need anything.",
	"nah":       "No worries. Let me know if you need help with something.",
	"ok":        "Understood. What would you like to do next?",
	"okay":      "Understood. What would you like to do next?",
	"thanks":    "You're welcome! Let me know if you need anything else.",
	"thank you": "You're welcome! Let me know if you need anything else.",
	"hi":        "Hello! How can I help you today?",
	"hello":     "Hello! How can I help you today?",
}

// TurnRequest is one inbound user message.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// TurnResponse is the answer to a TurnRequest.
type TurnResponse struct {
	Text            string `json:"response"`
	SessionID       string `json:"session_id"`
	TraceID         string `json:"trace_id"`
	PendingApproval bool   `json:"pending_approval"`
	ApprovalType    string `json:"approval_type,omitempty"`
}

// TurnObserver receives per-turn telemetry. *metrics.Collector satisfies it.
type TurnObserver interface {
	ObserveTurn(mode string, d time.Duration)
	ObserveApproval(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveTurn(string, time.Duration) {}
func (nopObserver) ObserveApproval(string)            {}

// Options configures an Orchestrator.
type Options struct {
	Sessions core.SessionStore
	Memory   core.MemoryStore
	History  *history.Builder

	// Classifier produces the plan. When it fails, Fallback is used.
	Classifier            intent.Classifier
	Fallback              intent.Classifier
	ClassificationTimeout time.Duration

	Approvals *approval.Manager
	Locks     *approval.KeyedMutex

	// Responder answers turns that need no agent from the conversation
	// context. When nil, NoAgentsText is returned.
	Responder    model.Model
	NoAgentsText string

	ConversationalReplies map[string]string

	// DisableMemory skips storing turn summaries.
	DisableMemory bool

	Observer       TurnObserver
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
}

// Orchestrator handles conversational turns. Safe for concurrent use; turns
// for the same session are serialized.
type Orchestrator struct {
	planner *coordination.Planner
	opts    Options
	tracer  trace.Tracer
}

// New creates an Orchestrator around planner.
func New(planner *coordination.Planner, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Sessions:              session.NewInMemoryStore(),
		Memory:                memory.NewInMemoryStore(),
		History:               history.NewBuilder(),
		Fallback:              intent.NewKeywordClassifier(),
		ClassificationTimeout: DefaultClassificationTimeout,
		Approvals:             approval.NewManager(),
		Locks:                 approval.NewKeyedMutex(),
		NoAgentsText:          DefaultNoAgentsText,
		ConversationalReplies: DefaultConversationalReplies,
		Observer:              nopObserver{},
		Logger:                logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.History == nil {
		opts.History = history.NewBuilder()
	}
	if opts.Locks == nil {
		opts.Locks = approval.NewKeyedMutex()
	}
	if opts.Approvals == nil {
		opts.Approvals = approval.NewManager()
	}
	if opts.ClassificationTimeout <= 0 {
		opts.ClassificationTimeout = DefaultClassificationTimeout
	}
	if opts.NoAgentsText == "" {
		opts.NoAgentsText = DefaultNoAgentsText
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	return &Orchestrator{
		planner: planner,
		opts:    opts,
		tracer:  opts.TracerProvider.Tracer("github.com/hupe1980/opsmesh/orchestrator"),
	}
}

// Approvals returns the approval manager used by the orchestrator.
func (o *Orchestrator) Approvals() *approval.Manager { return o.opts.Approvals }

// Sessions returns the session store used by the orchestrator.
func (o *Orchestrator) Sessions() core.SessionStore { return o.opts.Sessions }

// HandleTurn processes one user message.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) TurnResponse {
	start := time.Now()
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = core.NewID()
	}
	prompt := strings.TrimSpace(req.Prompt)

	ctx, span := o.tracer.Start(ctx, "orchestrator.turn", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	traceID := core.NewID()
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	log := logging.With(o.opts.Logger, "session_id", sessionID, "trace_id", traceID)

	unlock := o.opts.Locks.Lock(sessionID)
	defer unlock()

	resp := TurnResponse{SessionID: sessionID, TraceID: traceID}

	if res, ok := o.opts.Approvals.Resolve(ctx, sessionID, prompt); ok {
		log.Info("approval resolved", "status", string(res.Status), "action_type", string(res.Approval.ActionType))
		o.opts.Observer.ObserveApproval(string(res.Status))
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		resp.Text = res.Message
		o.record(ctx, log, sessionID, traceID, prompt, resp.Text, map[string]string{"mode": ModeApproval, "approval_status": string(res.Status)})
		o.opts.Observer.ObserveTurn(ModeApproval, time.Since(start))
		return resp
	}

	_, pending := o.opts.Approvals.Pending(sessionID)
	if !pending {
		if reply, ok := o.conversational(prompt); ok {
			resp.Text = reply
			o.record(ctx, log, sessionID, traceID, prompt, resp.Text, map[string]string{"mode": ModeConversational})
			o.opts.Observer.ObserveTurn(ModeConversational, time.Since(start))
			return resp
		}
	}

	window := o.contextWindow(ctx, log, sessionID)
	plan, mode := o.classify(ctx, log, prompt, window)
	span.SetAttributes(attribute.String("coordination.mode", mode), attribute.StringSlice("coordination.agents", plan.AgentNames()))

	outcome := o.planner.Execute(ctx, coordination.Input{SessionID: sessionID, Plan: plan, ContextWindow: window})
	resp.Text = outcome.Text
	if outcome.NoAgents {
		mode = ModeNoAgents
		resp.Text = o.respond(ctx, log, prompt, window)
	}

	for _, b := range append(append([]core.DataBlock(nil), outcome.Blocks...), outcome.ActionBlocks...) {
		if b.Failed() {
			span.AddEvent("agent.failed", trace.WithAttributes(
				attribute.String("agent.name", b.AgentName),
				attribute.String("error", b.Err),
			))
		}
	}

	if outcome.Approval != nil {
		p := o.opts.Approvals.Propose(sessionID, *outcome.Approval)
		o.opts.Observer.ObserveApproval("proposed")
		log.Info("approval proposed", "agent", p.AgentName, "action_type", string(p.ActionType))
	}
	if p, ok := o.opts.Approvals.Pending(sessionID); ok {
		resp.PendingApproval = true
		resp.ApprovalType = string(p.ActionType)
	}

	o.record(ctx, log, sessionID, traceID, prompt, resp.Text, map[string]string{
		"mode":   mode,
		"agents": strings.Join(plan.AgentNames(), ","),
	})
	o.opts.Observer.ObserveTurn(mode, time.Since(start))
	span.SetStatus(codes.Ok, "")
	log.Info("turn completed",
		"mode", mode,
		"agents", plan.AgentNames(),
		"pending_approval", resp.PendingApproval,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp
}

func (o *Orchestrator) conversational(prompt string) (string, bool) {
	key := strings.ToLower(strings.TrimRight(strings.TrimSpace(prompt), ".!?, "))
	reply, ok := o.opts.ConversationalReplies[key]
	return reply, ok
}

func (o *Orchestrator) contextWindow(ctx context.Context, log logging.Logger, sessionID string) string {
	if o.opts.Sessions == nil {
		return ""
	}
	sess, err := o.opts.Sessions.Get(ctx, sessionID)
	if err != nil {
		log.Warn("load session failed", "error", err)
		return ""
	}
	return o.opts.History.BuildSession(sess)
}

// classify runs the primary classifier within its budget and degrades to the
// fallback classifier, then to an empty plan.
func (o *Orchestrator) classify(ctx context.Context, log logging.Logger, prompt, window string) (core.CoordinationPlan, string) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.classify")
	defer span.End()

	if o.opts.Classifier != nil {
		cctx, cancel := context.WithTimeout(ctx, o.opts.ClassificationTimeout)
		plan, err := o.opts.Classifier.Classify(cctx, prompt, window)
		cancel()
		if err == nil {
			return plan, modeOf(plan)
		}
		span.RecordError(err)
		log.Warn("intent classification failed, using fallback", "error", err)
	}

	if o.opts.Fallback == nil {
		return core.CoordinationPlan{}, ModeFallback
	}
	plan, err := o.opts.Fallback.Classify(ctx, prompt, window)
	if err != nil {
		span.RecordError(err)
		log.Warn("fallback classification failed", "error", err)
		return core.CoordinationPlan{}, ModeFallback
	}
	if o.opts.Classifier == nil {
		return plan, modeOf(plan)
	}
	return plan, ModeFallback
}

func modeOf(plan core.CoordinationPlan) string {
	if plan.Mode == "" {
		return core.ModeParallel.String()
	}
	return plan.Mode.String()
}

// respond answers a turn without agents from the conversation context.
func (o *Orchestrator) respond(ctx context.Context, log logging.Logger, prompt, window string) string {
	if o.opts.Responder == nil {
		return o.opts.NoAgentsText
	}
	res, err := o.opts.Responder.Generate(ctx, model.UserRequest(
		"You are a business operations assistant. Answer briefly using only the conversation context. If the context does not contain the answer, say what kinds of requests you can help with.",
		history.Prepend(window, prompt),
	))
	if err != nil || strings.TrimSpace(res.Text) == "" {
		log.Warn("context answer failed", "error", err)
		return o.opts.NoAgentsText
	}
	return strings.TrimSpace(res.Text)
}

// record appends the user and assistant events and stores a memory of the
// exchange. Failures are logged; the turn still completes.
func (o *Orchestrator) record(ctx context.Context, log logging.Logger, sessionID, invocationID, prompt, answer string, meta map[string]string) {
	if o.opts.Sessions != nil {
		user := core.NewUserMessageEvent(invocationID, prompt)
		reply := core.NewMessageEvent(invocationID, Author, answer)
		reply.CustomMetadata = meta
		for _, ev := range []core.Event{user, reply} {
			if err := o.opts.Sessions.AppendEvent(ctx, sessionID, ev); err != nil {
				log.Error("append event failed", "event_id", ev.ID, "error", err)
			}
		}
	}

	if o.opts.Memory != nil && !o.opts.DisableMemory {
		summary := fmt.Sprintf("User: %s\nAssistant: %s", prompt, answer)
		md := map[string]any{"trace_id": invocationID}
		for k, v := range meta {
			md[k] = v
		}
		if err := o.opts.Memory.Store(ctx, sessionID, summary, md); err != nil {
			log.Warn("store memory failed", "error", err)
		}
	}
}
