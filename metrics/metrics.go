// Package metrics tracks per-agent call statistics for the orchestrator
// metrics endpoint and exports them as Prometheus collectors.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	maxRecentErrors = 10
	maxErrorLength  = 200
)

// CallRecord is emitted once per dispatch attempt.
type CallRecord struct {
	Agent     string
	SessionID string
	Attempt   int
	Latency   time.Duration
	Success   bool
	Err       error
}

// Recorder receives per-attempt call records.
type Recorder interface {
	RecordCall(rec CallRecord)
}

// NopRecorder discards all records.
type NopRecorder struct{}

// RecordCall implements Recorder.
func (NopRecorder) RecordCall(CallRecord) {}

// ErrorSample is a truncated error message kept for diagnostics.
type ErrorSample struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"error"`
}

// AgentStats is a point-in-time snapshot for one agent.
type AgentStats struct {
	Agent           string        `json:"agent"`
	TotalCalls      int           `json:"total_calls"`
	SuccessfulCalls int           `json:"successful_calls"`
	FailedCalls     int           `json:"failed_calls"`
	SuccessRate     float64       `json:"success_rate"`
	AvgLatencyMs    float64       `json:"avg_latency_ms"`
	RecentErrors    []ErrorSample `json:"recent_errors"`
}

type agentCounters struct {
	total, success, failed int
	latency                time.Duration
	errors                 []ErrorSample
}

// Collector aggregates call records in memory and mirrors them into
// Prometheus collectors. Safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	agents map[string]*agentCounters
	prom   *promMetrics
	now    func() time.Time
}

// Options configures a Collector.
type Options struct {
	// Registerer receives the Prometheus collectors; nil disables export.
	Registerer prometheus.Registerer
	// Namespace prefixes the Prometheus metric names.
	Namespace string
	// Now overrides the clock used for error timestamps.
	Now func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(optFns ...func(o *Options)) *Collector {
	opts := Options{Namespace: "opsmesh", Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	c := &Collector{agents: make(map[string]*agentCounters), now: opts.Now}
	if opts.Registerer != nil {
		c.prom = mustNewPromMetrics(opts.Registerer, opts.Namespace)
	}
	return c
}

// RecordCall implements Recorder.
func (c *Collector) RecordCall(rec CallRecord) {
	c.mu.Lock()
	a, ok := c.agents[rec.Agent]
	if !ok {
		a = &agentCounters{}
		c.agents[rec.Agent] = a
	}
	a.total++
	a.latency += rec.Latency
	if rec.Success {
		a.success++
	} else {
		a.failed++
		if rec.Err != nil {
			msg := truncateRunes(rec.Err.Error(), maxErrorLength)
			a.errors = append(a.errors, ErrorSample{Timestamp: c.now().UTC(), SessionID: rec.SessionID, Message: msg})
			if len(a.errors) > maxRecentErrors {
				a.errors = a.errors[len(a.errors)-maxRecentErrors:]
			}
		}
	}
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.observeCall(rec)
	}
}

// ObserveTurn counts a completed turn by coordination mode ("PARALLEL",
// "SEQUENTIAL", "approval", "fallback", ...).
func (c *Collector) ObserveTurn(mode string, d time.Duration) {
	if c.prom != nil {
		c.prom.turns.WithLabelValues(mode).Inc()
		c.prom.turnDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// ObserveApproval counts an approval state transition outcome.
func (c *Collector) ObserveApproval(outcome string) {
	if c.prom != nil {
		c.prom.approvals.WithLabelValues(outcome).Inc()
	}
}

// Stats returns a snapshot for one agent.
func (c *Collector) Stats(agent string) (AgentStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.agents[agent]
	if !ok {
		return AgentStats{Agent: agent}, false
	}
	return a.snapshot(agent), true
}

// Snapshot returns stats for every agent sorted by name.
func (c *Collector) Snapshot() []AgentStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]AgentStats, 0, len(c.agents))
	for name, a := range c.agents {
		out = append(out, a.snapshot(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}

// Reset clears all in-memory statistics. Prometheus counters are untouched.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = make(map[string]*agentCounters)
}

func (a *agentCounters) snapshot(name string) AgentStats {
	s := AgentStats{
		Agent:           name,
		TotalCalls:      a.total,
		SuccessfulCalls: a.success,
		FailedCalls:     a.failed,
		RecentErrors:    append([]ErrorSample{}, a.errors...),
	}
	if a.total > 0 {
		s.SuccessRate = float64(a.success) / float64(a.total) * 100
		s.AvgLatencyMs = float64(a.latency.Milliseconds()) / float64(a.total)
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
