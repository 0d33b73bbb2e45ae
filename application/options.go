package application

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/infrastructure/observability"
)

// ControllerConfig contains configuration for a controller.
type ControllerConfig struct {
	Name               string
	SystemPrompt       string
	NextStepPrompt     string
	MaxSteps           int
	DuplicateThreshold int
	StreamTimeout      time.Duration
	ConversationID     string
	History            []agent.Message
	Cleanups           []CleanupFunc
	Metrics            *observability.Metrics
	Tracer             trace.Tracer
}

// Option configures a controller.
type Option func(*ControllerConfig)

// WithName sets the persona name.
func WithName(name string) Option {
	return func(c *ControllerConfig) {
		c.Name = name
	}
}

// WithSystemPrompt sets the system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(c *ControllerConfig) {
		c.SystemPrompt = prompt
	}
}

// WithNextStepPrompt sets the prompt appended before every think.
func WithNextStepPrompt(prompt string) Option {
	return func(c *ControllerConfig) {
		c.NextStepPrompt = prompt
	}
}

// WithMaxSteps sets the step budget per run.
func WithMaxSteps(n int) Option {
	return func(c *ControllerConfig) {
		c.MaxSteps = n
	}
}

// WithDuplicateThreshold sets how many identical replies mark the loop stuck.
func WithDuplicateThreshold(n int) Option {
	return func(c *ControllerConfig) {
		c.DuplicateThreshold = n
	}
}

// WithStreamTimeout bounds the total duration of a streaming run.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *ControllerConfig) {
		c.StreamTimeout = d
	}
}

// WithConversationID sets the id reported to cleanup hooks and used as the
// default session id of RunStream.
func WithConversationID(id string) Option {
	return func(c *ControllerConfig) {
		c.ConversationID = id
	}
}

// WithHistory seeds the message log.
func WithHistory(messages []agent.Message) Option {
	return func(c *ControllerConfig) {
		c.History = messages
	}
}

// WithCleanup adds a hook that runs once at the end of every run.
func WithCleanup(fn CleanupFunc) Option {
	return func(c *ControllerConfig) {
		c.Cleanups = append(c.Cleanups, fn)
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *ControllerConfig) {
		c.Metrics = m
	}
}

// WithTracer sets the tracer for run and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *ControllerConfig) {
		c.Tracer = t
	}
}

// WithSettings applies the agent section of the configuration document.
func WithSettings(name string, s config.AgentSettings) Option {
	return func(c *ControllerConfig) {
		if name != "" {
			c.Name = name
		}
		c.SystemPrompt = s.SystemPrompt
		c.NextStepPrompt = s.NextStepPrompt
		c.MaxSteps = s.MaxSteps
		c.DuplicateThreshold = s.DuplicateThreshold
		c.StreamTimeout = s.StreamTimeout.Duration()
	}
}
