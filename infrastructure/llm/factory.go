package llm

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/steploop/domain/config"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
)

// NewFromConfig builds the configured provider and applies the decorators:
// re-reading (when enabled), resilience, tracing and logging.
func NewFromConfig(model config.ModelConfig, res config.ResilienceConfig, tracer trace.Tracer) (Provider, error) {
	var p Provider
	switch model.Provider {
	case config.ProviderOpenAI, "":
		p = NewOpenAIProvider(OpenAIConfig{
			APIKey:      model.APIKey,
			BaseURL:     model.BaseURL,
			Model:       model.Model,
			Temperature: model.Temperature,
			MaxTokens:   model.MaxTokens,
			Timeout:     model.Timeout.Duration(),
		})
	case config.ProviderAnthropic:
		p = NewAnthropicProvider(AnthropicConfig{
			APIKey:      model.APIKey,
			BaseURL:     model.BaseURL,
			Model:       model.Model,
			Temperature: model.Temperature,
			MaxTokens:   model.MaxTokens,
		})
	case config.ProviderScripted:
		replies := make([]ScriptedReply, 0, len(model.Script))
		for _, s := range model.Script {
			replies = append(replies, Reply(s))
		}
		if len(replies) == 0 {
			replies = append(replies, Reply("Task finished: no script configured."))
		}
		p = NewScriptedProvider(replies...).RepeatLast()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, model.Provider)
	}

	if model.ReRead {
		p = WithReReading(p)
	}
	p = WithResilience(p, resilience.CallerConfig{
		Attempts:         res.RetryAttempts,
		InitialDelay:     res.RetryDelay.Duration(),
		BreakerThreshold: res.BreakerThreshold,
		BreakerTimeout:   res.BreakerTimeout.Duration(),
	})
	if tracer != nil {
		p = WithTracing(p, tracer)
	}
	return WithLogging(p), nil
}
