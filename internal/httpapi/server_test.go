package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/a2a"
	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/internal/testutil"
	"github.com/hupe1980/opsmesh/metrics"
	"github.com/hupe1980/opsmesh/orchestrator"
)

type fakeTurns struct {
	mu   sync.Mutex
	reqs []orchestrator.TurnRequest
}

func (f *fakeTurns) HandleTurn(_ context.Context, req orchestrator.TurnRequest) orchestrator.TurnResponse {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return orchestrator.TurnResponse{
		Text:            "echo: " + req.Prompt,
		SessionID:       req.SessionID,
		TraceID:         "trace-1",
		PendingApproval: true,
		ApprovalType:    "email",
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T, turns TurnHandler, optFns ...func(o *Options)) http.Handler {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.Gatherer = prometheus.NewRegistry()
		o.Now = func() time.Time { return fixedNow }
	}}, optFns...)
	return NewRouter(turns, fns...)
}

func do(h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	turns := &fakeTurns{}
	h := newTestRouter(t, turns)

	rec := do(h, http.MethodPost, "/orchestrator/chat", `{"prompt":"stock of pumps","session_id":"s1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "echo: stock of pumps", resp["response"])
	assert.Equal(t, "s1", resp["session_id"])
	assert.Equal(t, "trace-1", resp["trace_id"])
	assert.Equal(t, true, resp["pending_approval"])
	assert.Equal(t, "email", resp["approval_type"])

	require.Len(t, turns.reqs, 1)
	assert.Equal(t, orchestrator.TurnRequest{SessionID: "s1", Prompt: "stock of pumps"}, turns.reqs[0])
}

func TestChat_RejectsBadInput(t *testing.T) {
	turns := &fakeTurns{}
	h := newTestRouter(t, turns)

	rec := do(h, http.MethodPost, "/orchestrator/chat", `{"prompt":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/orchestrator/chat", `{"prompt":"   "}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt is required")

	rec = do(h, http.MethodGet, "/orchestrator/chat", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	assert.Empty(t, turns.reqs)
}

func TestAgentMetrics(t *testing.T) {
	stats := metrics.NewCollector()
	stats.RecordCall(metrics.CallRecord{Agent: "inventory_specialist", Success: true, Latency: 20 * time.Millisecond})
	stats.RecordCall(metrics.CallRecord{Agent: "inventory_specialist", Success: false, Latency: 40 * time.Millisecond, Err: errors.New("boom")})

	h := newTestRouter(t, &fakeTurns{}, func(o *Options) { o.Stats = stats })
	rec := do(h, http.MethodGet, "/orchestrator/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, fixedNow.Equal(resp.Timestamp))
	require.Len(t, resp.Agents, 1)
	a := resp.Agents[0]
	assert.Equal(t, "inventory_specialist", a.Agent)
	assert.Equal(t, 2, a.TotalCalls)
	assert.Equal(t, 1, a.FailedCalls)
	assert.InDelta(t, 50.0, a.SuccessRate, 1e-9)
	assert.InDelta(t, 30.0, a.AvgLatencyMs, 1e-9)
	require.Len(t, a.RecentErrors, 1)
	assert.Equal(t, "boom", a.RecentErrors[0].Message)
}

func TestAgentMetrics_Empty(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{})
	rec := do(h, http.MethodGet, "/orchestrator/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"agents":[]`)
}

func TestPrometheusEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := metrics.NewCollector(func(o *metrics.Options) { o.Registerer = reg })
	stats.RecordCall(metrics.CallRecord{Agent: "policy_expert", Success: true, Latency: time.Millisecond})

	h := newTestRouter(t, &fakeTurns{}, func(o *Options) { o.Gatherer = reg })
	rec := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "opsmesh_")
	assert.Contains(t, rec.Body.String(), `agent="policy_expert"`)
}

func TestHealthAndReady(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, func(o *Options) { o.Ready = pinger{} })

	rec := do(h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(h, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)

	h = newTestRouter(t, &fakeTurns{}, func(o *Options) { o.Ready = pinger{err: errors.New("database is locked")} })
	rec = do(h, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func testRegistry(t *testing.T) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry()
	require.NoError(t, reg.Register(agent.Spec{Name: "inventory_specialist", Route: "inventory", Description: "stock levels"},
		testutil.Text("inventory_specialist", "12 pumps in stock")))
	require.NoError(t, reg.Register(agent.Spec{Name: "notification_specialist", Route: "notification", Description: "emails", Action: true},
		testutil.Text("notification_specialist", "draft ready")))
	return reg
}

func TestRoot(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, func(o *Options) {
		o.Agents = testRegistry(t)
		o.Version = "1.2.3"
	})
	rec := do(h, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string      `json:"status"`
		Version string      `json:"version"`
		Agents  []agentInfo `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "online", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, []agentInfo{
		{Name: "inventory_specialist", Description: "stock levels", Endpoint: "/inventory"},
		{Name: "notification_specialist", Description: "emails", Endpoint: "/notification", Action: true},
	}, resp.Agents)
}

func TestAgentEndpoints(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, &fakeTurns{}, func(o *Options) {
		o.Agents = testRegistry(t)
		o.PublicURL = "http://agents.local/"
	}))
	defer srv.Close()

	client := a2a.NewClient()
	out, err := client.Send(context.Background(), srv.URL+"/inventory/a2a/interact", "how many pumps?")
	require.NoError(t, err)
	assert.Equal(t, "12 pumps in stock", out)

	resp, err := http.Get(srv.URL + "/notification/.well-known/agent-card.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "notification_specialist", card.Name)
	assert.Equal(t, "http://agents.local/notification/a2a/interact", card.URL)

	_, err = client.Send(context.Background(), srv.URL+"/unknown/a2a/interact", "hi")
	var statusErr *a2a.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestCORS(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, func(o *Options) {
		o.AllowedOrigins = []string{"http://app.local"}
	})

	rec := do(h, http.MethodOptions, "/orchestrator/chat", "", map[string]string{
		"Origin":                        "http://app.local",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(h, http.MethodGet, "/health", "", map[string]string{"Origin": "http://evil.local"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{})
	rec := do(h, http.MethodGet, "/health", "", map[string]string{"Origin": "http://any.local"})
	assert.Equal(t, "http://any.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, func(o *Options) { o.RateLimit = 2 })

	client := map[string]string{"X-Real-IP": "10.0.0.1"}
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/", "", client).Code)
	}
	rec := do(h, http.MethodGet, "/", "", client)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	other := map[string]string{"X-Real-IP": "10.0.0.2"}
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/", "", other).Code)

	// Probes are not limited.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "", client).Code)
}

func TestRateLimit_AgentEndpointsUnlimited(t *testing.T) {
	h := newTestRouter(t, &fakeTurns{}, func(o *Options) {
		o.Agents = testRegistry(t)
		o.RateLimit = 2
	})

	body, err := json.Marshal(a2a.NewSendRequest("how many pumps?"))
	require.NoError(t, err)

	loopback := map[string]string{"X-Real-IP": "127.0.0.1", "Content-Type": "application/json"}
	for i := 0; i < 10; i++ {
		rec := do(h, http.MethodPost, "/inventory/a2a/interact", string(body), loopback)
		require.Equal(t, http.StatusOK, rec.Code, "call %d", i)
		assert.Contains(t, rec.Body.String(), "12 pumps in stock")
	}

	// The same client is still limited on the public routes.
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/", "", loopback).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/", "", loopback).Code)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := fixedNow
	l := newRateLimiter(RateLimitConfig{
		RequestsPerMinute: 1,
		EntryTTL:          time.Minute,
		CleanupInterval:   time.Minute,
		Now:               func() time.Time { return now },
	})
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(5 * time.Minute)
	assert.True(t, l.allow("b"))
	_, ok := l.entries["a"]
	assert.False(t, ok)
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "ip:192.0.2.7", clientKey(r))
	r.RemoteAddr = ""
	assert.Equal(t, "anonymous", clientKey(r))
}
