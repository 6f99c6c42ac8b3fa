// Package httpapi exposes the orchestrator, its metrics and the locally hosted
// specialists over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/opsmesh/a2a"
	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/metrics"
	"github.com/hupe1980/opsmesh/orchestrator"
	"github.com/hupe1980/opsmesh/session"
)

const maxChatBytes = 64 << 10

// TurnHandler runs one chat turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req orchestrator.TurnRequest) orchestrator.TurnResponse
}

// AgentSource lists the specialists served under /{route}.
type AgentSource interface {
	Specs() []agent.Spec
	Lookup(name string) (core.Agent, bool)
}

// Options configures NewRouter.
type Options struct {
	// Agents are mounted as A2A endpoints; nil mounts none.
	Agents AgentSource
	// Stats backs GET /orchestrator/metrics.
	Stats *metrics.Collector
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Ready is pinged by GET /ready.
	Ready session.Pinger
	// PublicURL prefixes the URLs advertised in agent cards.
	PublicURL      string
	Version        string
	AllowedOrigins []string
	RateLimit      int
	Logger         logging.Logger
	Now            func() time.Time
}

type server struct {
	turns TurnHandler
	opts  Options
}

// NewRouter builds the HTTP handler.
func NewRouter(turns TurnHandler, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		Version:        "dev",
		AllowedOrigins: []string{"*"},
		RateLimit:      100,
		Logger:         logging.NoOpLogger{},
		Now:            time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &server{turns: turns, opts: opts}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	// Agent endpoints carry the orchestrator's own remote calls, which all
	// arrive from one address.
	s.mountAgents(r)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(RateLimitConfig{RequestsPerMinute: opts.RateLimit, Now: opts.Now}))

		r.Get("/", s.root)
		r.Route("/orchestrator", func(r chi.Router) {
			r.Post("/chat", s.chat)
			r.Get("/metrics", s.agentMetrics)
		})
	})

	return r
}

func (s *server) mountAgents(r chi.Router) {
	if s.opts.Agents == nil {
		return
	}
	base := strings.TrimRight(s.opts.PublicURL, "/")
	for _, spec := range s.opts.Agents.Specs() {
		ag, ok := s.opts.Agents.Lookup(spec.Name)
		if !ok {
			continue
		}
		route := "/" + strings.Trim(spec.Route, "/")
		card := a2a.NewAgentCard(ag, base+route+"/a2a/interact", s.opts.Version)

		r.Route(route, func(r chi.Router) {
			r.Method(http.MethodPost, "/a2a/interact", a2a.NewHandler(ag, func(o *a2a.HandlerOptions) {
				o.Logger = logging.With(s.opts.Logger, "agent", spec.Name)
			}))
			r.Method(http.MethodGet, "/.well-known/agent-card.json", a2a.CardHandler(card))
		})
		s.opts.Logger.Debug("agent mounted", "agent", spec.Name, "route", route)
	}
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusUnprocessableEntity, "prompt is required")
		return
	}

	writeJSON(w, http.StatusOK, s.turns.HandleTurn(r.Context(), req))
}

type metricsResponse struct {
	Timestamp time.Time            `json:"timestamp"`
	Agents    []metrics.AgentStats `json:"agents"`
}

func (s *server) agentMetrics(w http.ResponseWriter, _ *http.Request) {
	resp := metricsResponse{Timestamp: s.opts.Now().UTC(), Agents: []metrics.AgentStats{}}
	if s.opts.Stats != nil {
		resp.Agents = s.opts.Stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.opts.Now().UTC(),
	})
}

func (s *server) ready(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready.Ping(ctx); err != nil {
			s.opts.Logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type agentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Endpoint    string `json:"endpoint"`
	Action      bool   `json:"action,omitempty"`
}

func (s *server) root(w http.ResponseWriter, _ *http.Request) {
	agents := []agentInfo{}
	if s.opts.Agents != nil {
		for _, spec := range s.opts.Agents.Specs() {
			agents = append(agents, agentInfo{
				Name:        spec.Name,
				Description: spec.Description,
				Endpoint:    "/" + strings.Trim(spec.Route, "/"),
				Action:      spec.Action,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"service":   "opsmesh",
		"version":   s.opts.Version,
		"protocols": []string{"a2a"},
		"agents":    agents,
		"endpoints": map[string]string{
			"chat":    "/orchestrator/chat",
			"metrics": "/orchestrator/metrics",
			"health":  "/health",
			"ready":   "/ready",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
