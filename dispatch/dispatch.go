// Package dispatch performs outbound agent calls with a hard per-attempt
// timeout, bounded retry of transient failures and per-attempt telemetry.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/opsmesh/core"
	"github.com/hupe1980/opsmesh/logging"
	"github.com/hupe1980/opsmesh/metrics"
	"github.com/hupe1980/opsmesh/sanitize"
)

const (
	// DefaultTimeout is the per-attempt budget for agent calls.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of additional attempts after the first.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the fixed delay between attempts.
	DefaultRetryDelay = time.Second
)

// Options configures a Dispatcher.
type Options struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Sanitizer      *sanitize.Sanitizer
	Recorder       metrics.Recorder
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
}

// Call describes a single logical agent invocation.
type Call struct {
	Agent      core.Agent
	SessionID  string
	Prompt     string
	Timeout    time.Duration
	MaxRetries int
}

// Result is the outcome of a successful invocation.
type Result struct {
	Text     string
	Attempts int
	Latency  time.Duration
}

// Dispatcher invokes agents. Safe for concurrent use.
type Dispatcher struct {
	opts   Options
	tracer trace.Tracer
}

// New creates a Dispatcher.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Sanitizer:  sanitize.New(),
		Recorder:   metrics.NopRecorder{},
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = sanitize.New()
	}
	return &Dispatcher{
		opts:   opts,
		tracer: opts.TracerProvider.Tracer("github.com/hupe1980/opsmesh/dispatch"),
	}
}

// NewCall builds a Call using the dispatcher's default timeout and retry budget.
func (d *Dispatcher) NewCall(agent core.Agent, sessionID, prompt string) Call {
	return Call{Agent: agent, SessionID: sessionID, Prompt: prompt, Timeout: d.opts.Timeout, MaxRetries: d.opts.MaxRetries}
}

// Invoke performs the call. Transient failures are retried up to
// call.MaxRetries times with a fixed delay; an empty response is never
// retried. The returned error is always a *Error.
func (d *Dispatcher) Invoke(ctx context.Context, call Call) (Result, error) {
	name := "<nil>"
	if call.Agent != nil {
		name = call.Agent.Name()
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.invoke", trace.WithAttributes(
		attribute.String("agent.name", name),
		attribute.String("session.id", call.SessionID),
	))
	defer span.End()

	if call.Agent == nil {
		err := &Error{Kind: KindTransport, Agent: name, Err: errors.New("no agent")}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = d.opts.Timeout
	}
	retries := call.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var (
		res     Result
		lastErr *Error
		start   = time.Now()
	)

	op := func() error {
		res.Attempts++
		attemptStart := time.Now()
		text, err := d.attempt(ctx, call.Agent, call.Prompt, timeout)
		if err == nil {
			text = d.opts.Sanitizer.Sanitize(text)
			if text == "" {
				err = ErrEmptyResponse
			}
		}
		d.record(ctx, name, call.SessionID, res.Attempts, time.Since(attemptStart), err)

		if err == nil {
			res.Text = text
			lastErr = nil
			return nil
		}
		lastErr = &Error{Kind: kindOf(err), Agent: name, Attempts: res.Attempts, Err: err}
		if !IsTransient(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.opts.RetryDelay), uint64(retries)),
		ctx,
	)
	_ = backoff.Retry(op, b)

	res.Latency = time.Since(start)
	span.SetAttributes(attribute.Int("dispatch.attempts", res.Attempts))

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Kind.String())
		return Result{Attempts: res.Attempts, Latency: res.Latency}, lastErr
	}
	return res, nil
}

// attempt runs one invocation bounded by timeout. The agent call runs in its
// own goroutine so an agent that ignores cancellation is abandoned when the
// deadline passes.
func (d *Dispatcher) attempt(ctx context.Context, agent core.Agent, prompt string, timeout time.Duration) (string, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		text, err := agent.Invoke(actx, prompt)
		ch <- outcome{text: text, err: err}
	}()

	select {
	case o := <-ch:
		return o.text, o.err
	case <-actx.Done():
		return "", actx.Err()
	}
}

func (d *Dispatcher) record(ctx context.Context, agent, sessionID string, attempt int, latency time.Duration, err error) {
	logging.LogAgentCall(d.opts.Logger, logging.AgentCall{
		Agent:     agent,
		SessionID: sessionID,
		Attempt:   attempt,
		Duration:  latency,
		Success:   err == nil,
		Err:       err,
	})
	d.opts.Recorder.RecordCall(metrics.CallRecord{
		Agent:     agent,
		SessionID: sessionID,
		Attempt:   attempt,
		Latency:   latency,
		Success:   err == nil,
		Err:       err,
	})
	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int64("latency_ms", latency.Milliseconds()),
		attribute.Bool("success", err == nil),
	))
}
