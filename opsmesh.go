// Package opsmesh assembles the coordination engine from configuration: the
// language model, specialist agents, dispatcher, coordination planner,
// approval workflow, session and memory stores and the HTTP surface.
//
// Most applications interact with this package by:
//  1. Loading a config.Config (see cmd/opsmesh)
//  2. Creating an OpsMesh via New()
//  3. Serving Handler() or calling Chat() directly
//
// All defaults are safe for local development: the mock model, keyword
// routing and in-memory stores need no credentials or network access.
package opsmesh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/opsmesh/a2a"
	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/approval"
	"github.com/hupe1980/opsmesh/coordination"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/dispatch"
	"github.com/hupe1980/opsmesh/history"
	"github.com/hupe1980/opsmesh/intent"
	"github.com/hupe1980/opsmesh/internal/config"
	"github.com/hupe1980/opsmesh/internal/httpapi"
	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/mail"
	"github.com/hupe1980/opsmesh/memory"
	"github.com/hupe1980/opsmesh/metrics"
	"github.com/hupe1980/opsmesh/model"
	"github.com/hupe1980/opsmesh/model/anthropic"
	"github.com/hupe1980/opsmesh/model/gemini"
	"github.com/hupe1980/opsmesh/model/openai"
	"github.com/hupe1980/opsmesh/orchestrator"
	"github.com/hupe1980/opsmesh/sanitize"
	"github.com/hupe1980/opsmesh/session"
)

// Version is reported by the service info endpoint and agent cards.
const Version = "0.1.0"

// Options overrides collaborators normally built from configuration.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// Sender replaces the SMTP sender.
	Sender mail.Sender
	// Registerer receives Prometheus collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer       prometheus.Gatherer
	TracerProvider trace.TracerProvider
	Logger         logging.Logger
	Now            func() time.Time
}

// OpsMesh is the assembled engine.
type OpsMesh struct {
	cfg          config.Config
	opts         Options
	model        model.Model
	agents       *agent.Registry
	hosted       *agent.Registry
	stats        *metrics.Collector
	sessions     core.SessionStore
	orchestrator *orchestrator.Orchestrator
	closers      []func() error
}

// New builds an OpsMesh from cfg. Call Close to release the session store.
func New(ctx context.Context, cfg config.Config, optFns ...func(o *Options)) (*OpsMesh, error) {
	opts := Options{
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
		Logger:     logging.NoOpLogger{},
		Now:        time.Now,
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

	m := &OpsMesh{cfg: cfg, opts: opts}

	llm := opts.Model
	if llm == nil {
		var err error
		if llm, err = NewModel(ctx, cfg.Model); err != nil {
			return nil, err
		}
	}
	m.model = llm

	if err := m.buildAgents(); err != nil {
		return nil, err
	}
	if err := m.buildSessions(); err != nil {
		return nil, err
	}

	m.stats = metrics.NewCollector(func(o *metrics.Options) {
		o.Registerer = opts.Registerer
		if cfg.Metrics.Namespace != "" {
			o.Namespace = cfg.Metrics.Namespace
		}
		o.Now = opts.Now
	})

	dispatcher := dispatch.New(func(o *dispatch.Options) {
		o.Timeout = cfg.Agents.Timeout
		o.MaxRetries = cfg.Agents.MaxRetries
		o.RetryDelay = cfg.Agents.RetryDelay
		o.Sanitizer = newSanitizer(cfg.Sanitizer)
		o.Recorder = m.stats
		o.Logger = logging.With(opts.Logger, "component", "dispatch")
		o.TracerProvider = opts.TracerProvider
	})

	planner := coordination.New(m.agents, dispatcher, func(o *coordination.Options) {
		o.Detector = approval.NewPhraseDetector(func(o *approval.DetectorOptions) {
			if len(cfg.Approval.TriggerPhrases) > 0 {
				o.TriggerPhrases = cfg.Approval.TriggerPhrases
			}
		})
		o.MaxConcurrency = cfg.Agents.Concurrency
		o.Now = opts.Now
		o.Logger = logging.With(opts.Logger, "component", "coordination")
		o.TracerProvider = opts.TracerProvider
	})

	sender := opts.Sender
	if sender == nil {
		sender = mail.NewSMTPSender(mail.SMTPConfig(cfg.SMTP))
	}
	approvals := approval.NewManager(func(o *approval.Options) {
		o.TTL = cfg.Approval.TTL
		o.Replies = approval.NewPhraseReplyClassifier(nilIfEmpty(cfg.Approval.Affirmative), nilIfEmpty(cfg.Approval.Negative))
		o.Logger = logging.With(opts.Logger, "component", "approval")
		o.Now = opts.Now
	})
	approvals.Register(approval.ActionEmailSend, approval.NewEmailExecutor(sender))

	actionAgents := []string{}
	for _, spec := range m.agents.Specs() {
		if spec.Action {
			actionAgents = append(actionAgents, spec.Name)
		}
	}
	keyword := intent.NewKeywordClassifier(func(o *intent.KeywordOptions) {
		o.ActionAgents = actionAgents
	})

	var classifier intent.Classifier = keyword
	if cfg.Classification.Mode == config.ClassifierModel && cfg.Model.Provider != config.ProviderMock {
		classifier = intent.NewModelClassifier(llm, func(o *intent.ModelClassifierOptions) {
			o.Agents = m.agents.Specs()
			o.Logger = logging.With(opts.Logger, "component", "intent")
		})
	}

	var responder model.Model
	if cfg.Model.Provider != config.ProviderMock {
		responder = llm
	}

	m.orchestrator = orchestrator.New(planner, func(o *orchestrator.Options) {
		o.Sessions = m.sessions
		o.Memory = memory.NewInMemoryStore(func(o *memory.Options) { o.Now = opts.Now })
		o.History = history.NewBuilder(func(o *history.Options) {
			if cfg.History.MaxEvents > 0 {
				o.MaxEvents = cfg.History.MaxEvents
			}
			if cfg.History.MaxChars > 0 {
				o.MaxChars = cfg.History.MaxChars
			}
		})
		o.Classifier = classifier
		o.Fallback = keyword
		o.ClassificationTimeout = cfg.Classification.Timeout
		o.Approvals = approvals
		o.Responder = responder
		o.Observer = m.stats
		o.Logger = logging.With(opts.Logger, "component", "orchestrator")
		o.TracerProvider = opts.TracerProvider
	})

	opts.Logger.Info("opsmesh assembled",
		"model", llm.Info().Provider,
		"transport", cfg.Agents.Transport,
		"classifier", cfg.Classification.Mode,
		"session_backend", cfg.Session.Backend,
		"agents", m.agents.Len(),
	)

	return m, nil
}

// NewModel creates the language model selected by cfg.
func NewModel(ctx context.Context, cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderMock, "":
		return model.NewMockModel("mock", "mock"), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.APIKey = cfg.APIKey
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
		}), nil
	case config.ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.APIKey = cfg.APIKey
			o.Temperature = float32(cfg.Temperature)
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int32(cfg.MaxTokens)
			}
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func (m *OpsMesh) buildAgents() error {
	local := agent.LocalFactory(m.model, func(o *agent.LocalOptions) {
		if m.cfg.Agents.CompanyName != "" {
			o.CompanyName = m.cfg.Agents.CompanyName
		}
		o.Signature = m.cfg.Agents.Signature
		o.Now = m.opts.Now
		o.Logger = logging.With(m.opts.Logger, "component", "agent")
	})

	hosted, err := agent.BuildRegistry(agent.DefaultSpecs(), local)
	if err != nil {
		return fmt.Errorf("build local agents: %w", err)
	}
	m.hosted = hosted

	if m.cfg.Agents.Transport != config.TransportRemote {
		m.agents = hosted
		return nil
	}

	client := a2a.NewClient(func(o *a2a.ClientOptions) {
		o.Logger = logging.With(m.opts.Logger, "component", "a2a")
	})
	remote, err := agent.BuildRegistry(agent.DefaultSpecs(), agent.RemoteFactory(m.cfg.Agents.BaseURL, client))
	if err != nil {
		return fmt.Errorf("build remote agents: %w", err)
	}
	m.agents = remote
	return nil
}

func (m *OpsMesh) buildSessions() error {
	var store core.SessionStore
	switch m.cfg.Session.Backend {
	case config.SessionSQLite:
		s, err := session.NewSQLiteStore(m.cfg.Session.Path)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		m.closers = append(m.closers, s.Close)
		store = s
	default:
		store = session.NewInMemoryStore()
	}

	if m.cfg.Session.CacheSize > 0 && m.cfg.Session.Backend == config.SessionSQLite {
		cached, err := session.NewCachedStore(store, m.cfg.Session.CacheSize)
		if err != nil {
			return fmt.Errorf("cache session store: %w", err)
		}
		store = cached
	}
	m.sessions = store
	return nil
}

// Chat runs one turn.
func (m *OpsMesh) Chat(ctx context.Context, sessionID, prompt string) orchestrator.TurnResponse {
	return m.orchestrator.HandleTurn(ctx, orchestrator.TurnRequest{SessionID: sessionID, Prompt: prompt})
}

// Orchestrator returns the turn handler.
func (m *OpsMesh) Orchestrator() *orchestrator.Orchestrator { return m.orchestrator }

// Agents returns the registry used for dispatch.
func (m *OpsMesh) Agents() *agent.Registry { return m.agents }

// Stats returns the per-agent call statistics.
func (m *OpsMesh) Stats() *metrics.Collector { return m.stats }

// Handler returns the HTTP API. publicURL is advertised in agent cards.
func (m *OpsMesh) Handler(publicURL string) http.Handler {
	var ready session.Pinger
	if p, ok := m.sessions.(session.Pinger); ok {
		ready = p
	}
	return httpapi.NewRouter(m.orchestrator, func(o *httpapi.Options) {
		o.Agents = m.hosted
		o.Stats = m.stats
		o.Gatherer = m.opts.Gatherer
		o.Ready = ready
		o.PublicURL = publicURL
		o.Version = Version
		o.AllowedOrigins = m.cfg.Server.AllowedOrigins
		o.RateLimit = m.cfg.Server.RateLimit
		o.Logger = logging.With(m.opts.Logger, "component", "http")
		o.Now = m.opts.Now
	})
}

// Close releases the session store.
func (m *OpsMesh) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newSanitizer(cfg config.SanitizerConfig) *sanitize.Sanitizer {
	return sanitize.New(func(o *sanitize.Options) {
		if len(cfg.RefusalPatterns) > 0 {
			o.RefusalPatterns = cfg.RefusalPatterns
		}
		if len(cfg.FollowUpKeywords) > 0 {
			o.FollowUpKeywords = cfg.FollowUpKeywords
		}
	})
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
