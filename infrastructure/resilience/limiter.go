package resilience

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
)

// ErrRateLimited indicates a session start was throttled.
var ErrRateLimited = errors.New("too many session starts, please retry later")

// StartLimiter throttles session starts with a token bucket per key.
// A nil or disabled limiter allows everything.
type StartLimiter struct {
	limiter ratelimit.RateLimiter
}

// NewStartLimiter creates a limiter from the rate limit config.
func NewStartLimiter(cfg config.RateLimitConfig) *StartLimiter {
	if !cfg.Enabled {
		return &StartLimiter{}
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = rate
	}
	return &StartLimiter{
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    burst,
			FailOpen: true,
		}),
	}
}

// Allow consumes a token for key and reports whether the start may proceed.
func (l *StartLimiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	if key == "" {
		key = "global"
	}
	if !l.limiter.Allow(ctx, key) {
		logging.Warn().
			Add(logging.Str("key", key)).
			Msg("session start rate limited")
		return ErrRateLimited
	}
	return nil
}
