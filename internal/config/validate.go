package config

import (
	"fmt"
	"strings"

	"github.com/hupe1980/opsmesh/logging"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks required values and ranges. It returns a *ValidationError
// describing all problems, or nil.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr must not be empty")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		add("log.format must be json or text, got %q", c.Log.Format)
	}

	switch c.Model.Provider {
	case ProviderMock:
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if c.Model.APIKey == "" {
			add("model.api_key is required for provider %q", c.Model.Provider)
		}
	default:
		add("model.provider must be one of mock, openai, anthropic, gemini, got %q", c.Model.Provider)
	}

	switch c.Agents.Transport {
	case TransportLocal:
	case TransportRemote:
		if c.Agents.BaseURL == "" {
			add("agents.base_url is required for remote transport")
		}
	default:
		add("agents.transport must be local or remote, got %q", c.Agents.Transport)
	}
	if c.Agents.Timeout <= 0 {
		add("agents.timeout must be positive")
	}
	if c.Agents.MaxRetries < 0 {
		add("agents.max_retries must not be negative")
	}
	if c.Agents.RetryDelay < 0 {
		add("agents.retry_delay must not be negative")
	}

	if c.Classification.Mode != ClassifierModel && c.Classification.Mode != ClassifierKeyword {
		add("classification.mode must be model or keyword, got %q", c.Classification.Mode)
	}
	if c.Classification.Timeout <= 0 {
		add("classification.timeout must be positive")
	}

	switch c.Session.Backend {
	case SessionMemory:
	case SessionSQLite:
		if c.Session.Path == "" {
			add("session.path is required for the sqlite backend")
		}
	default:
		add("session.backend must be memory or sqlite, got %q", c.Session.Backend)
	}

	if c.History.MaxEvents <= 0 {
		add("history.max_events must be positive")
	}
	if c.History.MaxChars <= 0 {
		add("history.max_chars must be positive")
	}
	if c.Approval.TTL < 0 {
		add("approval.ttl must not be negative")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		add("tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		add("tracing.sample_ratio must be within [0, 1]")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Warnings reports settings that do not prevent startup but disable
// features.
func (c *Config) Warnings() []string {
	var w []string
	if c.SMTP.Username == "" || c.SMTP.Password == "" {
		w = append(w, "smtp credentials are not set; approved e-mails will fail to send")
	}
	if c.Model.Provider == ProviderMock && c.Classification.Mode == ClassifierModel {
		w = append(w, "mock model provider in use; intent classification falls back to keyword routing")
	}
	return w
}
