// Package config provides the domain model for steploop configuration.
package config

import "time"

// AppConfig is the complete configuration document.
type AppConfig struct {
	// Name is the persona name reported by controllers.
	Name string `json:"name" yaml:"name"`

	// Agent contains step-loop settings applied to new controllers.
	Agent AgentSettings `json:"agent" yaml:"agent"`
	// Registry contains session registry retention settings.
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	// Model configures the model collaborator.
	Model ModelConfig `json:"model" yaml:"model"`
	// Tools selects the built-in tools.
	Tools ToolsConfig `json:"tools" yaml:"tools"`
	// Resilience configures tool execution resilience.
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	// RateLimit throttles session starts.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	// History configures conversation history persistence.
	History HistoryConfig `json:"history" yaml:"history"`
	// Server configures the HTTP surface.
	Server ServerConfig `json:"server" yaml:"server"`
	// Logging configures structured logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	// Tracing configures OpenTelemetry tracing.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	// SimpleChat configures the tool-less chat mode.
	SimpleChat SimpleChatConfig `json:"simple_chat" yaml:"simple_chat"`
}

// AgentSettings contains step-loop behavior settings.
type AgentSettings struct {
	// SystemPrompt is the system instruction sent on every model call.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// NextStepPrompt is appended as a user turn before every think.
	NextStepPrompt string `json:"next_step_prompt,omitempty" yaml:"next_step_prompt,omitempty"`
	// MaxSteps is the step budget per run.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	// DuplicateThreshold is the number of identical assistant replies that
	// marks the loop as stuck.
	DuplicateThreshold int `json:"duplicate_threshold,omitempty" yaml:"duplicate_threshold,omitempty"`
	// StreamTimeout bounds the total duration of a streaming run.
	StreamTimeout Duration `json:"stream_timeout,omitempty" yaml:"stream_timeout,omitempty"`
}

// RegistryConfig controls session registry retention.
type RegistryConfig struct {
	// RetainTTL is how long idle entries are kept. Zero keeps them forever.
	RetainTTL Duration `json:"retain_ttl,omitempty" yaml:"retain_ttl,omitempty"`
	// SweepInterval is how often idle entries are swept.
	SweepInterval Duration `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"`
}

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderScripted  = "scripted"
)

// ModelConfig configures the model collaborator.
type ModelConfig struct {
	// Provider is one of openai, anthropic or scripted.
	Provider string `json:"provider" yaml:"provider"`
	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIKey authenticates against the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Model is the model identifier.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	// ReRead enables the re-reading prompt rewrite.
	ReRead bool `json:"reread,omitempty" yaml:"reread,omitempty"`
	// Timeout bounds a single model call.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Script lists canned replies for the scripted provider.
	Script []string `json:"script,omitempty" yaml:"script,omitempty"`
}

// ToolsConfig selects the built-in tools.
type ToolsConfig struct {
	// Enabled lists the tool names to register.
	Enabled []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Search configures the web_search tool.
	Search SearchConfig `json:"search,omitempty" yaml:"search,omitempty"`
}

// SearchConfig configures the web_search tool's search API.
type SearchConfig struct {
	// URL is the search endpoint.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// APIKey authenticates against the search API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Engine selects the upstream engine.
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`
	// Limit caps the number of results returned to the model.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// ResilienceConfig contains tool execution resilience settings.
type ResilienceConfig struct {
	// MaxConcurrent bounds concurrent tool executions.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	// BreakerThreshold is consecutive failures before the breaker opens.
	BreakerThreshold int `json:"breaker_threshold,omitempty" yaml:"breaker_threshold,omitempty"`
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout Duration `json:"breaker_timeout,omitempty" yaml:"breaker_timeout,omitempty"`
	// RetryAttempts is the maximum attempts for retryable calls.
	RetryAttempts int `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty"`
	// RetryDelay is the initial retry delay.
	RetryDelay Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	// Timeout is the default per-call timeout.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// RateLimitConfig throttles session starts.
type RateLimitConfig struct {
	// Enabled enables rate limiting.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Rate is the tokens per second.
	Rate int `json:"rate,omitempty" yaml:"rate,omitempty"`
	// Burst is the maximum burst size.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// History back-ends.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// HistoryConfig configures conversation persistence.
type HistoryConfig struct {
	// Backend is one of none, memory, file, redis, sqlite or postgres.
	Backend string `json:"backend" yaml:"backend"`
	// Dir is the directory of the file back-end.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// LastN is the number of messages loaded as chat memory.
	LastN int `json:"last_n,omitempty" yaml:"last_n,omitempty"`
	// Redis configures the redis back-end.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
	// SQLite configures the sqlite back-end.
	SQLite SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	// Postgres configures the postgres back-end.
	Postgres PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// RedisConfig configures the redis history store.
type RedisConfig struct {
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// SQLiteConfig configures the sqlite history store.
type SQLiteConfig struct {
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// PostgresConfig configures the postgres history store.
type PostgresConfig struct {
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// Keepalive is the SSE ping interval.
	Keepalive Duration `json:"keepalive,omitempty" yaml:"keepalive,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is trace, debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Tracing exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Exporter   string  `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint   string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure   bool    `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// SimpleChatConfig configures the tool-less chat mode.
type SimpleChatConfig struct {
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// Default persona prompts.
const (
	DefaultName = "LiteMind"

	DefaultSystemPrompt = "You are LiteMind, an all-capable AI assistant, aimed at solving any task presented by the user.\n" +
		"You have various tools at your disposal that you can call upon to efficiently complete complex requests."

	DefaultNextStepPrompt = "Based on user needs, proactively select the most appropriate tool or combination of tools.\n" +
		"For complex tasks, you can break down the problem and use different tools step by step to solve it.\n" +
		"After using each tool, clearly explain the execution results and suggest the next steps.\n" +
		"If you want to stop the interaction at any point, use the `terminate` tool/function call."

	DefaultSimpleChatPrompt = "You are a friendly, concise assistant. Answer the user's question directly."
)

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() AppConfig {
	return AppConfig{
		Name: DefaultName,
		Agent: AgentSettings{
			SystemPrompt:       DefaultSystemPrompt,
			NextStepPrompt:     DefaultNextStepPrompt,
			MaxSteps:           10,
			DuplicateThreshold: 2,
			StreamTimeout:      Duration(3 * time.Minute),
		},
		Registry: RegistryConfig{
			SweepInterval: Duration(time.Minute),
		},
		Model: ModelConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   2048,
			Timeout:     Duration(60 * time.Second),
		},
		Tools: ToolsConfig{
			Enabled: []string{"terminate", "web_scrape"},
			Search: SearchConfig{
				URL:    "https://www.searchapi.io/api/v1/search",
				Engine: "baidu",
				Limit:  5,
			},
		},
		Resilience: ResilienceConfig{
			MaxConcurrent:    10,
			BreakerThreshold: 5,
			BreakerTimeout:   Duration(30 * time.Second),
			RetryAttempts:    3,
			RetryDelay:       Duration(100 * time.Millisecond),
			Timeout:          Duration(30 * time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    10,
			Burst:   20,
		},
		History: HistoryConfig{
			Backend: BackendMemory,
			Dir:     "./tmp/chat-memory",
			LastN:   10,
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "steploop:",
			},
			SQLite:   SQLiteConfig{DSN: "file:steploop.db?mode=rwc"},
			Postgres: PostgresConfig{DSN: "postgres://localhost:5432/steploop", Schema: "public"},
		},
		Server: ServerConfig{
			Addr:      ":8123",
			Keepalive: Duration(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Exporter:   ExporterStdout,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		SimpleChat: SimpleChatConfig{
			SystemPrompt: DefaultSimpleChatPrompt,
		},
	}
}

// ToolEnabled reports whether the named tool is enabled.
func (c AppConfig) ToolEnabled(name string) bool {
	for _, n := range c.Tools.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
