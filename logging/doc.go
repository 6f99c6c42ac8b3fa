// Package logging provides a minimal logging interface and adapters for opsmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the orchestrator, dispatcher and stores use. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "json"})
//	d := dispatch.New(func(o *dispatch.Options) { o.Logger = logger })
package logging
