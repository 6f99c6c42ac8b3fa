package opsmesh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/agent"
	"github.com/hupe1980/opsmesh/internal/config"
	"github.com/hupe1980/opsmesh/mail"
	"github.com/hupe1980/opsmesh/model"
)

const inventoryReply = "**Industrial Pump P-100** (SKU: PMP-100)\nStock: 12 units\nPrice: $450.00"

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) Sent() []mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mail.Message(nil), o.sent...)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Model.Provider = config.ProviderMock
	cfg.Agents.Transport = config.TransportLocal
	cfg.Agents.RetryDelay = time.Millisecond
	cfg.Session.Backend = config.SessionMemory
	return *cfg
}

func newMesh(t *testing.T, cfg config.Config, box *outbox) *OpsMesh {
	t.Helper()
	llm := model.NewMockModel("mock", "mock")
	llm.SetFallback(func(model.Request) (string, error) { return inventoryReply, nil })

	reg := prometheus.NewRegistry()
	m, err := New(context.Background(), cfg, func(o *Options) {
		o.Model = llm
		o.Sender = box
		o.Registerer = reg
		o.Gatherer = reg
		o.Now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestOpsMesh_DraftApproveSend(t *testing.T) {
	box := &outbox{}
	m := newMesh(t, testConfig(t), box)
	ctx := context.Background()

	resp := m.Chat(ctx, "s1", "Check pump stock and email the report to ops@acme.com")
	assert.Equal(t, "s1", resp.SessionID)
	assert.True(t, resp.PendingApproval)
	assert.Contains(t, resp.Text, "Stock: 12 units")
	assert.Contains(t, resp.Text, "[DRAFT EMAIL]")
	assert.Contains(t, resp.Text, "To: ops@acme.com")
	assert.Empty(t, box.Sent())

	resp = m.Chat(ctx, "s1", "yes")
	assert.False(t, resp.PendingApproval)
	assert.Contains(t, resp.Text, "Email sent successfully to ops@acme.com")

	sent := box.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ops@acme.com", sent[0].To)
	assert.NotEmpty(t, sent[0].Subject)

	stats := m.Stats().Snapshot()
	names := make([]string, 0, len(stats))
	for _, s := range stats {
		names = append(names, s.Agent)
		assert.Equal(t, 1, s.SuccessfulCalls)
	}
	assert.ElementsMatch(t, []string{agent.InventorySpecialist, agent.NotificationSpecialist}, names)
}

func TestOpsMesh_RejectDiscardsDraft(t *testing.T) {
	box := &outbox{}
	m := newMesh(t, testConfig(t), box)
	ctx := context.Background()

	require.True(t, m.Chat(ctx, "s2", "Draft an email to ops@acme.com about pump stock").PendingApproval)
	resp := m.Chat(ctx, "s2", "no")
	assert.False(t, resp.PendingApproval)
	assert.Empty(t, box.Sent())
}

func TestOpsMesh_Handler(t *testing.T) {
	m := newMesh(t, testConfig(t), &outbox{})
	srv := httptest.NewServer(m.Handler("http://opsmesh.local"))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orchestrator/chat", "application/json",
		strings.NewReader(`{"prompt":"How many pumps are in stock?","session_id":"web-1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turn map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	assert.Equal(t, "web-1", turn["session_id"])
	assert.Contains(t, turn["response"], "Stock: 12 units")
	assert.Equal(t, false, turn["pending_approval"])

	card, err := http.Get(srv.URL + "/inventory/.well-known/agent-card.json")
	require.NoError(t, err)
	defer card.Body.Close()
	assert.Equal(t, http.StatusOK, card.StatusCode)

	ready, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestOpsMesh_RemoteTransport(t *testing.T) {
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Agents.Transport = config.TransportRemote
	cfg.Agents.BaseURL = srv.URL
	m := newMesh(t, cfg, &outbox{})
	handler = m.Handler(srv.URL)

	resp := m.Chat(context.Background(), "r1", "How many pumps are in stock?")
	assert.Contains(t, resp.Text, "Stock: 12 units")

	stats, ok := m.Stats().Stats(agent.InventorySpecialist)
	require.True(t, ok)
	assert.Equal(t, 1, stats.SuccessfulCalls)
}

func TestOpsMesh_SQLiteSessions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Backend = config.SessionSQLite
	cfg.Session.Path = filepath.Join(t.TempDir(), "sessions.db")

	m := newMesh(t, cfg, &outbox{})
	m.Chat(context.Background(), "persist", "How many pumps are in stock?")
	require.NoError(t, m.Close())

	again := newMesh(t, cfg, &outbox{})
	sess, err := again.Orchestrator().Sessions().Get(context.Background(), "persist")
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 2)
}

func TestNewModel(t *testing.T) {
	ctx := context.Background()

	llm, err := NewModel(ctx, config.ModelConfig{Provider: config.ProviderMock})
	require.NoError(t, err)
	assert.Equal(t, "mock", llm.Info().Provider)

	llm, err = NewModel(ctx, config.ModelConfig{Provider: config.ProviderOpenAI, Name: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", llm.Info().Provider)

	llm, err = NewModel(ctx, config.ModelConfig{Provider: config.ProviderAnthropic, APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", llm.Info().Provider)

	_, err = NewModel(ctx, config.ModelConfig{Provider: "watson"})
	assert.ErrorContains(t, err, "unknown model provider")
}
