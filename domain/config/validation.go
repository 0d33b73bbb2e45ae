package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the YAML path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates application configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *AppConfig) ValidationErrors {
	v.errors = nil

	v.validateAgent(config)
	v.validateRegistry(config)
	v.validateModel(config)
	v.validateTools(config)
	v.validateResilience(config)
	v.validateRateLimit(config)
	v.validateHistory(config)
	v.validateServer(config)
	v.validateLogging(config)
	v.validateTracing(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) nonNegative(path string, d Duration) {
	if d < 0 {
		v.addError(path, "duration must be non-negative")
	}
}

func (v *Validator) validateAgent(config *AppConfig) {
	if config.Agent.MaxSteps <= 0 {
		v.addError("agent.max_steps", "max_steps must be positive")
	}
	if config.Agent.DuplicateThreshold < 1 {
		v.addError("agent.duplicate_threshold", "duplicate_threshold must be >= 1")
	}
	v.nonNegative("agent.stream_timeout", config.Agent.StreamTimeout)
}

func (v *Validator) validateRegistry(config *AppConfig) {
	v.nonNegative("registry.retain_ttl", config.Registry.RetainTTL)
	v.nonNegative("registry.sweep_interval", config.Registry.SweepInterval)
	if config.Registry.RetainTTL > 0 && config.Registry.SweepInterval == 0 {
		v.addError("registry.sweep_interval", "sweep_interval is required when retain_ttl is set")
	}
}

func (v *Validator) validateModel(config *AppConfig) {
	switch config.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
		if config.Model.Model == "" {
			v.addError("model.model", "model is required")
		}
	case ProviderScripted:
	default:
		v.addError("model.provider", fmt.Sprintf("unknown provider: %s", config.Model.Provider))
	}
	if config.Model.Temperature < 0 || config.Model.Temperature > 2 {
		v.addError("model.temperature", "temperature must be between 0 and 2")
	}
	if config.Model.MaxTokens < 0 {
		v.addError("model.max_tokens", "max_tokens must be non-negative")
	}
	v.nonNegative("model.timeout", config.Model.Timeout)
}

func (v *Validator) validateTools(config *AppConfig) {
	if config.Tools.Search.Limit < 0 {
		v.addError("tools.search.limit", "limit must be non-negative")
	}
	if !config.ToolEnabled("web_search") {
		return
	}
	if config.Tools.Search.URL == "" {
		v.addError("tools.search.url", "url is required when web_search is enabled")
	}
	if config.Tools.Search.APIKey == "" {
		v.addError("tools.search.api_key", "api_key is required when web_search is enabled")
	}
}

func (v *Validator) validateResilience(config *AppConfig) {
	if config.Resilience.MaxConcurrent < 0 {
		v.addError("resilience.max_concurrent", "max_concurrent must be non-negative")
	}
	if config.Resilience.BreakerThreshold < 0 {
		v.addError("resilience.breaker_threshold", "breaker_threshold must be non-negative")
	}
	if config.Resilience.RetryAttempts < 0 {
		v.addError("resilience.retry_attempts", "retry_attempts must be non-negative")
	}
	v.nonNegative("resilience.breaker_timeout", config.Resilience.BreakerTimeout)
	v.nonNegative("resilience.retry_delay", config.Resilience.RetryDelay)
	v.nonNegative("resilience.timeout", config.Resilience.Timeout)
}

func (v *Validator) validateRateLimit(config *AppConfig) {
	if !config.RateLimit.Enabled {
		return
	}
	if config.RateLimit.Rate <= 0 {
		v.addError("rate_limit.rate", "rate must be positive when enabled")
	}
	if config.RateLimit.Burst <= 0 {
		v.addError("rate_limit.burst", "burst must be positive when enabled")
	}
}

func (v *Validator) validateHistory(config *AppConfig) {
	h := config.History
	switch h.Backend {
	case BackendNone, BackendMemory:
	case BackendFile:
		if h.Dir == "" {
			v.addError("history.dir", "dir is required for file backend")
		}
	case BackendRedis:
		if h.Redis.Address == "" {
			v.addError("history.redis.address", "address is required for redis backend")
		}
	case BackendSQLite:
		if h.SQLite.DSN == "" {
			v.addError("history.sqlite.dsn", "dsn is required for sqlite backend")
		}
	case BackendPostgres:
		if h.Postgres.DSN == "" {
			v.addError("history.postgres.dsn", "dsn is required for postgres backend")
		}
	default:
		v.addError("history.backend", fmt.Sprintf("unknown backend: %s", h.Backend))
	}
	if h.LastN < 0 {
		v.addError("history.last_n", "last_n must be non-negative")
	}
}

func (v *Validator) validateServer(config *AppConfig) {
	if config.Server.Addr == "" {
		v.addError("server.addr", "addr is required")
	}
	v.nonNegative("server.keepalive", config.Server.Keepalive)
}

func (v *Validator) validateLogging(config *AppConfig) {
	if config.Logging.Level != "" {
		switch strings.ToLower(config.Logging.Level) {
		case "trace", "debug", "info", "warn", "error":
		default:
			v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
		}
	}
	if config.Logging.Format != "" && config.Logging.Format != "json" && config.Logging.Format != "console" {
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateTracing(config *AppConfig) {
	if !config.Tracing.Enabled {
		return
	}
	switch config.Tracing.Exporter {
	case ExporterStdout:
	case ExporterOTLP:
		if config.Tracing.Endpoint == "" {
			v.addError("tracing.endpoint", "endpoint is required for otlp exporter")
		}
	default:
		v.addError("tracing.exporter", fmt.Sprintf("unknown exporter: %s", config.Tracing.Exporter))
	}
	if config.Tracing.SampleRate < 0 || config.Tracing.SampleRate > 1 {
		v.addError("tracing.sample_rate", "sample_rate must be between 0 and 1")
	}
}
