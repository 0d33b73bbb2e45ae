package llm

import (
	"context"

	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
)

type resilientProvider struct {
	next   Provider
	caller *resilience.Caller[CompletionResponse]
}

// WithResilience retries failed completions behind a circuit breaker.
// Streams are not retried since chunks may already have been delivered.
func WithResilience(p Provider, cfg resilience.CallerConfig) StreamingProvider {
	return &resilientProvider{
		next:   p,
		caller: resilience.NewCaller[CompletionResponse](cfg),
	}
}

func (r *resilientProvider) Name() string {
	return r.next.Name()
}

func (r *resilientProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return r.caller.Do(ctx, func(ctx context.Context) (CompletionResponse, error) {
		return r.next.Complete(ctx, req)
	})
}

func (r *resilientProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	return StreamOrComplete(ctx, r.next, req, onChunk)
}
