package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: OPSMESH_AGENTS__TIMEOUT=45s sets agents.timeout.
const EnvPrefix = "OPSMESH_"

// Defaults returns the built-in configuration values keyed by path.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8000",
		"server.allowed_origins":  []string{"http://localhost:3000", "http://localhost:5173"},
		"server.rate_limit":       100,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "120s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",

		"log.level":  "info",
		"log.format": "json",

		"model.provider":    ProviderMock,
		"model.temperature": 0.3,
		"model.max_tokens":  1024,

		"agents.transport":    TransportLocal,
		"agents.base_url":     "http://localhost:8000",
		"agents.timeout":      "30s",
		"agents.max_retries":  3,
		"agents.retry_delay":  "1s",
		"agents.concurrency":  0,
		"agents.company_name": "Acme Industrial Supply",
		"agents.signature":    "Best regards,\nOperations Team",

		"classification.mode":    ClassifierModel,
		"classification.timeout": "10s",

		"session.backend":    SessionMemory,
		"session.path":       "./data/sessions.db",
		"session.cache_size": 256,

		"history.max_events": 4,
		"history.max_chars":  2000,

		"approval.ttl": "30m",

		"smtp.host": "smtp.gmail.com",
		"smtp.port": 587,

		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.insecure":     true,
		"tracing.service_name": "opsmesh",
		"tracing.sample_ratio": 1.0,

		"metrics.namespace": "opsmesh",
	}
}

// LoadDotEnv loads environment variables from the given files (".env" when
// none are given). Missing files are ignored and existing variables are not
// overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty) and the environment. The result is not validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyProviderEnv()
	return &cfg, nil
}

// envKey maps OPSMESH_SMTP__PASSWORD to smtp.password.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// applyProviderEnv fills credentials from the variables the provider SDKs
// conventionally read when the OPSMESH_ ones are unset.
func (c *Config) applyProviderEnv() {
	if c.Model.APIKey == "" {
		var keys []string
		switch c.Model.Provider {
		case ProviderOpenAI:
			keys = []string{"OPENAI_API_KEY"}
		case ProviderAnthropic:
			keys = []string{"ANTHROPIC_API_KEY"}
		case ProviderGemini:
			keys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
		}
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				c.Model.APIKey = v
				break
			}
		}
	}
	if c.SMTP.Username == "" {
		c.SMTP.Username = os.Getenv("SMTP_USER")
	}
	if c.SMTP.Password == "" {
		c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	}
}
