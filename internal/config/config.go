package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Provider identities selectable via AI_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds the full runtime configuration. It is parsed once at
// startup and treated as read-only afterwards.
type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":8000"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`

	// AI provider settings
	Provider         string  `env:"AI_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string  `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string  `env:"OPENAI_BASE_URL"`
	OpenAIModel      string  `env:"OPENAI_MODEL" envDefault:"gpt-4-turbo-preview"`
	AnthropicAPIKey  string  `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string  `env:"ANTHROPIC_BASE_URL"`
	AnthropicModel   string  `env:"ANTHROPIC_MODEL" envDefault:"claude-3-sonnet-20240229"`
	MaxOutputTokens  int     `env:"AI_MAX_OUTPUT_TOKENS" envDefault:"1000"`
	Temperature      float64 `env:"AI_TEMPERATURE" envDefault:"0.7"`

	// Admission control
	RateLimitPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"30"`

	// Session lifecycle
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	ReapInterval time.Duration `env:"REAP_INTERVAL" envDefault:"10m"`

	// CORS
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Prompts
	SystemPromptPath  string `env:"SYSTEM_PROMPT_PATH" envDefault:"config/system_prompt.txt"`
	KnowledgeBasePath string `env:"KNOWLEDGE_BASE_PATH" envDefault:"config/knowledge_base.txt"`

	// Admin panel; disabled unless both are set
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Provider-call worker pool
	MinWorkers        int           `env:"MIN_WORKERS" envDefault:"2"`
	MaxWorkers        int           `env:"MAX_WORKERS" envDefault:"32"`
	WorkerIdleTimeout time.Duration `env:"WORKER_IDLE_TIMEOUT" envDefault:"30s"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	return cfg, nil
}

// ProviderModel returns the model name for the selected provider.
func (c *Config) ProviderModel() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicModel
	}
	return c.OpenAIModel
}

// ProviderCredential returns the API key for the selected provider.
func (c *Config) ProviderCredential() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// AdminEnabled reports whether the admin surface should be registered.
func (c *Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}
