package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind classifies a dispatch failure.
type Kind int

const (
	// KindTransport covers network, protocol and agent-side failures.
	KindTransport Kind = iota
	// KindTimeout means the per-attempt deadline expired.
	KindTimeout
	// KindEmptyResponse means the agent answered but with no usable text.
	KindEmptyResponse
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "DispatchTimeout"
	case KindEmptyResponse:
		return "DispatchEmptyResponse"
	default:
		return "DispatchTransportError"
	}
}

// ErrEmptyResponse is the cause recorded for KindEmptyResponse failures.
var ErrEmptyResponse = errors.New("agent returned an empty response")

// Error is the typed failure returned by Dispatcher.Invoke. It carries the
// cause of the last attempt.
type Error struct {
	Kind     Kind
	Agent    string
	Attempts int
	Err      error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("dispatch %s: %s after %d attempt(s): %v", e.Agent, e.Kind, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Reason is a short user-facing description used in inline notices. It
// names the kind and, for HTTP failures, the status code; the cause itself
// stays in Error for logs and metrics.
func (e *Error) Reason() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("timed out after %d attempt(s)", e.Attempts)
	case KindEmptyResponse:
		return "returned an empty response"
	default:
		var status interface{ HTTPStatus() int }
		if errors.As(e.Err, &status) {
			return fmt.Sprintf("request failed after %d attempt(s) with HTTP %d", e.Attempts, status.HTTPStatus())
		}
		return fmt.Sprintf("request failed after %d attempt(s)", e.Attempts)
	}
}

// transientError marks an error as retryable.
type transientError struct{ err error }

func (t *transientError) Error() string   { return t.err.Error() }
func (t *transientError) Unwrap() error   { return t.err }
func (t *transientError) Temporary() bool { return true }

// Transient wraps err so the dispatcher retries it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying: deadlines, network
// failures and errors that declare themselves temporary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET)
}

func kindOf(err error) Kind {
	if errors.Is(err, ErrEmptyResponse) {
		return KindEmptyResponse
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}
