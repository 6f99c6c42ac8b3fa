// Package config loads service configuration from layered sources: built-in
// defaults, an optional YAML file and OPSMESH_* environment variables, in
// that order of precedence.
package config

import (
	"time"
)

// Config holds all service configuration.
type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Log            LogConfig            `koanf:"log"`
	Model          ModelConfig          `koanf:"model"`
	Agents         AgentsConfig         `koanf:"agents"`
	Classification ClassificationConfig `koanf:"classification"`
	Session        SessionConfig        `koanf:"session"`
	History        HistoryConfig        `koanf:"history"`
	Approval       ApprovalConfig       `koanf:"approval"`
	Sanitizer      SanitizerConfig      `koanf:"sanitizer"`
	SMTP           SMTPConfig           `koanf:"smtp"`
	Tracing        TracingConfig        `koanf:"tracing"`
	Metrics        MetricsConfig        `koanf:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RateLimit       int           `koanf:"rate_limit"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Model providers.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ModelConfig selects the language model backing classification and the
// local specialists.
type ModelConfig struct {
	Provider    string  `koanf:"provider"`
	Name        string  `koanf:"name"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int64   `koanf:"max_tokens"`
}

// Agent transports.
const (
	TransportLocal  = "local"
	TransportRemote = "remote"
)

// AgentsConfig configures specialist agents and dispatch.
type AgentsConfig struct {
	// Transport is "local" (in-process model agents) or "remote" (A2A over HTTP).
	Transport   string        `koanf:"transport"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxRetries  int           `koanf:"max_retries"`
	RetryDelay  time.Duration `koanf:"retry_delay"`
	Concurrency int           `koanf:"concurrency"`
	CompanyName string        `koanf:"company_name"`
	Signature   string        `koanf:"signature"`
}

// Classification modes.
const (
	ClassifierModel   = "model"
	ClassifierKeyword = "keyword"
)

// ClassificationConfig configures intent classification.
type ClassificationConfig struct {
	Mode    string        `koanf:"mode"`
	Timeout time.Duration `koanf:"timeout"`
}

// Session backends.
const (
	SessionMemory = "memory"
	SessionSQLite = "sqlite"
)

// SessionConfig selects the session store.
type SessionConfig struct {
	Backend   string `koanf:"backend"`
	Path      string `koanf:"path"`
	CacheSize int    `koanf:"cache_size"`
}

// HistoryConfig sizes the conversation context window.
type HistoryConfig struct {
	MaxEvents int `koanf:"max_events"`
	MaxChars  int `koanf:"max_chars"`
}

// ApprovalConfig configures the approval state machine.
type ApprovalConfig struct {
	TTL            time.Duration `koanf:"ttl"`
	Affirmative    []string      `koanf:"affirmative"`
	Negative       []string      `koanf:"negative"`
	TriggerPhrases []string      `koanf:"trigger_phrases"`
}

// SanitizerConfig overrides the response sanitizer pattern sets.
type SanitizerConfig struct {
	RefusalPatterns  []string `koanf:"refusal_patterns"`
	FollowUpKeywords []string `koanf:"follow_up_keywords"`
}

// SMTPConfig configures the mail relay.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	Namespace string `koanf:"namespace"`
}
