package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/a2a"
	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/internal/testutil"
	"github.com/hupe1980/opsmesh/metrics"
)

type captureRecorder struct {
	mu      sync.Mutex
	records []metrics.CallRecord
}

func (c *captureRecorder) RecordCall(rec metrics.CallRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *captureRecorder) all() []metrics.CallRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]metrics.CallRecord(nil), c.records...)
}

func newTestDispatcher(rec metrics.Recorder) *Dispatcher {
	return New(func(o *Options) {
		o.Timeout = time.Second
		o.MaxRetries = 2
		o.RetryDelay = time.Millisecond
		o.Recorder = rec
	})
}

func TestInvoke_Success(t *testing.T) {
	rec := &captureRecorder{}
	d := newTestDispatcher(rec)
	agent := testutil.Text("inventory", `"  Valve A: 12 units  "`)

	res, err := d.Invoke(context.Background(), d.NewCall(agent, "s1", "list valves"))

	require.NoError(t, err)
	assert.Equal(t, "Valve A: 12 units", res.Text)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"list valves"}, agent.Prompts())

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, "inventory", records[0].Agent)
	assert.Equal(t, "s1", records[0].SessionID)
	assert.True(t, records[0].Success)
}

func TestInvoke_RetriesTransientFailures(t *testing.T) {
	rec := &captureRecorder{}
	d := newTestDispatcher(rec)
	agent := testutil.NewScriptedAgent("policy",
		testutil.Reply{Err: Transient(errors.New("503 service unavailable"))},
		testutil.Reply{Text: "Returns accepted within 30 days."},
	)

	res, err := d.Invoke(context.Background(), d.NewCall(agent, "s1", "return policy"))

	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "Returns accepted within 30 days.", res.Text)

	records := rec.all()
	require.Len(t, records, 2)
	assert.False(t, records[0].Success)
	assert.Equal(t, 1, records[0].Attempt)
	assert.True(t, records[1].Success)
	assert.Equal(t, 2, records[1].Attempt)
}

func TestInvoke_ExhaustsRetries(t *testing.T) {
	rec := &captureRecorder{}
	d := newTestDispatcher(rec)
	cause := errors.New("connection reset")
	agent := testutil.NewScriptedAgent("analytics", testutil.Reply{Err: Transient(cause)})

	_, err := d.Invoke(context.Background(), d.NewCall(agent, "s1", "kpis"))

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindTransport, derr.Kind)
	assert.Equal(t, 3, derr.Attempts)
	assert.Equal(t, "analytics", derr.Agent)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, agent.Calls())
	assert.Len(t, rec.all(), 3)
}

func TestInvoke_FixedBackoffBetweenAttempts(t *testing.T) {
	d := New(func(o *Options) {
		o.MaxRetries = 2
		o.RetryDelay = 25 * time.Millisecond
	})
	agent := testutil.NewScriptedAgent("orders", testutil.Reply{Err: Transient(errors.New("unavailable"))})

	start := time.Now()
	_, err := d.Invoke(context.Background(), d.NewCall(agent, "", "status"))

	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestInvoke_TimeoutPerAttempt(t *testing.T) {
	rec := &captureRecorder{}
	d := newTestDispatcher(rec)
	agent := testutil.NewScriptedAgent("slow", testutil.Reply{Block: true})

	call := d.NewCall(agent, "s1", "anything")
	call.Timeout = 20 * time.Millisecond
	call.MaxRetries = 1

	_, err := d.Invoke(context.Background(), call)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindTimeout, derr.Kind)
	assert.Equal(t, 2, derr.Attempts)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, rec.all(), 2)
}

func TestInvoke_AbandonsAgentIgnoringContext(t *testing.T) {
	d := newTestDispatcher(nil)
	release := make(chan struct{})
	defer close(release)
	agent := core.AgentFunc{AgentName: "stubborn", Fn: func(context.Context, string) (string, error) {
		<-release
		return "late", nil
	}}

	call := d.NewCall(agent, "s1", "x")
	call.Timeout = 10 * time.Millisecond
	call.MaxRetries = 0

	_, err := d.Invoke(context.Background(), call)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindTimeout, derr.Kind)
}

func TestInvoke_EmptyResponseNotRetried(t *testing.T) {
	for name, text := range map[string]string{
		"blank":            "   ",
		"only boilerplate": "I do not have access to that system.",
		"empty quotes":     `""`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := &captureRecorder{}
			d := newTestDispatcher(rec)
			agent := testutil.Text("inventory", text)

			_, err := d.Invoke(context.Background(), d.NewCall(agent, "s1", "list"))

			var derr *Error
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, KindEmptyResponse, derr.Kind)
			assert.Equal(t, 1, agent.Calls())
			assert.Len(t, rec.all(), 1)
		})
	}
}

func TestInvoke_PermanentErrorNotRetried(t *testing.T) {
	d := newTestDispatcher(nil)
	agent := testutil.NewScriptedAgent("policy", testutil.Reply{Err: errors.New("invalid request")})

	_, err := d.Invoke(context.Background(), d.NewCall(agent, "s1", "x"))

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindTransport, derr.Kind)
	assert.Equal(t, 1, agent.Calls())
}

func TestInvoke_RecoversPanics(t *testing.T) {
	d := newTestDispatcher(nil)
	agent := core.AgentFunc{AgentName: "broken", Fn: func(context.Context, string) (string, error) {
		panic("nil map")
	}}

	_, err := d.Invoke(context.Background(), d.NewCall(agent, "s1", "x"))

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindTransport, derr.Kind)
	assert.Contains(t, derr.Error(), "agent panicked")
}

func TestInvoke_CancelledParentStopsRetrying(t *testing.T) {
	d := newTestDispatcher(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agent := testutil.NewScriptedAgent("inventory", testutil.Reply{Block: true})

	_, err := d.Invoke(ctx, d.NewCall(agent, "s1", "x"))

	require.Error(t, err)
	assert.LessOrEqual(t, agent.Calls(), 1)
}

func TestInvoke_NilAgent(t *testing.T) {
	d := newTestDispatcher(nil)
	_, err := d.Invoke(context.Background(), Call{Prompt: "x"})
	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, KindTransport, derr.Kind)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(Transient(errors.New("x"))))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(ErrEmptyResponse))
	assert.False(t, IsTransient(errors.New("bad input")))
	assert.False(t, IsTransient(nil))
	assert.Nil(t, Transient(nil))
}

func TestError_Reason(t *testing.T) {
	assert.Equal(t, "timed out after 2 attempt(s)", (&Error{Kind: KindTimeout, Attempts: 2}).Reason())
	assert.Equal(t, "returned an empty response", (&Error{Kind: KindEmptyResponse, Attempts: 1}).Reason())
	assert.Equal(t, "request failed after 4 attempt(s)", (&Error{Kind: KindTransport, Attempts: 4, Err: errors.New("dial tcp 10.0.0.5:8000: refused")}).Reason())

	remote := &Error{Kind: KindTransport, Attempts: 2, Err: fmt.Errorf("send: %w", &a2a.StatusError{
		URL:        "http://10.0.0.5:8000/inventory/a2a/interact",
		StatusCode: http.StatusTooManyRequests,
		Body:       "{\"error\":\"rate limit exceeded\"}\n",
	})}
	assert.Equal(t, "request failed after 2 attempt(s) with HTTP 429", remote.Reason())
	assert.Contains(t, remote.Error(), "/inventory/a2a/interact")
	assert.Equal(t, "DispatchTimeout", KindTimeout.String())
}
