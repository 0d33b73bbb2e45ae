// Package observability provides OpenTelemetry tracing and Prometheus metrics.
package observability

import (
	"io"
	"time"

	"github.com/felixgeelhaar/steploop/domain/config"
)

// Config configures the observability infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Environment is the deployment environment (e.g., "production", "staging").
	Environment string

	// Tracing configures distributed tracing.
	Tracing TracingConfig
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	// Enabled enables tracing (default: false).
	Enabled bool

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration

	// Writer receives stdout exporter output (default: os.Stdout).
	Writer io.Writer
}

// ExporterType specifies the telemetry exporter.
type ExporterType string

const (
	// ExporterOTLP exports to OTLP endpoint (e.g., Jaeger, Tempo, Grafana).
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout exports to stdout (useful for development).
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables export (no-op).
	ExporterNoop ExporterType = "noop"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "steploop",
		ServiceVersion: "dev",
		Environment:    "development",
		Tracing: TracingConfig{
			Exporter:     ExporterNoop,
			SampleRate:   1.0,
			BatchTimeout: 5 * time.Second,
		},
	}
}

// ConfigFrom maps the tracing section of the application config.
func ConfigFrom(c config.TracingConfig) Config {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = c.Enabled
	if c.Exporter != "" {
		cfg.Tracing.Exporter = ExporterType(c.Exporter)
	}
	cfg.Tracing.Endpoint = c.Endpoint
	cfg.Tracing.Insecure = c.Insecure
	cfg.Tracing.SampleRate = c.SampleRate
	return cfg
}

// Option configures the observability infrastructure.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithEnvironment sets the environment.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithStdoutTracing enables stdout tracing to w (nil means os.Stdout).
func WithStdoutTracing(w io.Writer) Option {
	return func(c *Config) {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = ExporterStdout
		c.Tracing.Writer = w
	}
}

// WithOTLP enables OTLP trace export.
func WithOTLP(endpoint string, insecure bool) Option {
	return func(c *Config) {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = ExporterOTLP
		c.Tracing.Endpoint = endpoint
		c.Tracing.Insecure = insecure
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.Tracing.SampleRate = rate
	}
}
