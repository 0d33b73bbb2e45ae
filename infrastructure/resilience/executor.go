// Package resilience provides resilient execution patterns using fortify.
package resilience

import (
	"context"
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/domain/tool"
)

// Executor runs tools behind a bulkhead, a circuit breaker and, for
// retry-safe tools, a retry policy.
type Executor struct {
	bulkhead bulkhead.Bulkhead[tool.Result]
	breaker  circuitbreaker.CircuitBreaker[tool.Result]
	retry    retry.Retry[tool.Result]
	timeout  time.Duration
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent tool executions.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts for retry-safe tools.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// DefaultTimeout applies to tools without their own timeout annotation.
	DefaultTimeout time.Duration
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          30 * time.Second,
	}
}

// ConfigFrom maps the resilience section of the application config, keeping
// defaults for unset values.
func ConfigFrom(c config.ResilienceConfig) ExecutorConfig {
	cfg := DefaultExecutorConfig()
	if c.MaxConcurrent > 0 {
		cfg.MaxConcurrent = c.MaxConcurrent
	}
	if c.BreakerThreshold > 0 {
		cfg.CircuitBreakerThreshold = c.BreakerThreshold
	}
	if c.BreakerTimeout > 0 {
		cfg.CircuitBreakerTimeout = c.BreakerTimeout.Duration()
	}
	if c.RetryAttempts > 0 {
		cfg.RetryMaxAttempts = c.RetryAttempts
	}
	if c.RetryDelay > 0 {
		cfg.RetryInitialDelay = c.RetryDelay.Duration()
	}
	if c.Timeout > 0 {
		cfg.DefaultTimeout = c.Timeout.Duration()
	}
	return cfg
}

// NewExecutor creates a new resilient executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	threshold := cfg.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	attempts := cfg.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return &Executor{
		bulkhead: bulkhead.New[tool.Result](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[tool.Result](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    cfg.CircuitBreakerTimeout,
			Timeout:     cfg.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[tool.Result](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  cfg.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    cfg.RetryBackoffMultiplier,
		}),
		timeout: cfg.DefaultTimeout,
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

// Execute runs a tool with resilience patterns applied.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry (retry-safe tools only).
func (e *Executor) Execute(ctx context.Context, t tool.Tool, input json.RawMessage) (tool.Result, error) {
	start := time.Now()

	timeout := e.timeout
	if secs := t.Annotations().Timeout; secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	result, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (tool.Result, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return e.breaker.Execute(ctx, func(ctx context.Context) (tool.Result, error) {
			if t.Annotations().CanRetry() {
				return e.retry.Do(ctx, func(ctx context.Context) (tool.Result, error) {
					return t.Execute(ctx, input)
				})
			}
			return t.Execute(ctx, input)
		})
	})

	if err == nil {
		result.Duration = time.Since(start)
	}

	return result, err
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor) CircuitBreakerState() circuitbreaker.State {
	return e.breaker.State()
}
