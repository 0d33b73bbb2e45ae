package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// Caller wraps a remote call of any result type in a retry policy guarded by
// a circuit breaker. The model decorators use it.
type Caller[T any] struct {
	breaker circuitbreaker.CircuitBreaker[T]
	retry   retry.Retry[T]
}

// CallerConfig configures a Caller.
type CallerConfig struct {
	Attempts         int
	InitialDelay     time.Duration
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// NewCaller creates a Caller.
func NewCaller[T any](cfg CallerConfig) *Caller[T] {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Caller[T]{
		breaker: circuitbreaker.New[T](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    timeout,
			Timeout:     timeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- threshold is positive
			},
		}),
		retry: retry.New[T](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  cfg.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
	}
}

// Do runs fn through the breaker and the retry policy.
func (c *Caller[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return c.breaker.Execute(ctx, func(ctx context.Context) (T, error) {
		return c.retry.Do(ctx, fn)
	})
}

// State returns the breaker state.
func (c *Caller[T]) State() circuitbreaker.State {
	return c.breaker.State()
}
