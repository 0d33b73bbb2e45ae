package llm

import (
	"context"
	"time"

	"github.com/felixgeelhaar/steploop/infrastructure/logging"
)

type loggingProvider struct {
	next Provider
}

// WithLogging logs every model request and response at debug level.
func WithLogging(p Provider) StreamingProvider {
	return &loggingProvider{next: p}
}

func (l *loggingProvider) Name() string {
	return l.next.Name()
}

func (l *loggingProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	logging.Debug().
		Add(logging.Provider(l.next.Name())).
		Add(logging.Model(req.Model)).
		Add(logging.Int("messages", len(req.Messages))).
		Add(logging.ToolCount(len(req.Tools))).
		Msg("model request")

	start := time.Now()
	resp, err := l.next.Complete(ctx, req)
	if err != nil {
		logging.Warn().
			Add(logging.Provider(l.next.Name())).
			Add(logging.Duration(time.Since(start))).
			Add(logging.ErrorField(err)).
			Msg("model request failed")
		return resp, err
	}

	logging.Debug().
		Add(logging.Provider(l.next.Name())).
		Add(logging.Model(resp.Model)).
		Add(logging.ToolCount(len(resp.Message.ToolCalls))).
		Add(logging.Int("total_tokens", resp.Usage.TotalTokens)).
		Add(logging.Duration(time.Since(start))).
		Msg("model response")
	return resp, nil
}

func (l *loggingProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	logging.Debug().
		Add(logging.Provider(l.next.Name())).
		Add(logging.Int("messages", len(req.Messages))).
		Msg("model stream request")

	chunks := 0
	err := StreamOrComplete(ctx, l.next, req, func(s string) error {
		chunks++
		return onChunk(s)
	})

	logging.Debug().
		Add(logging.Provider(l.next.Name())).
		Add(logging.Int("chunks", chunks)).
		Add(logging.ErrorField(err)).
		Msg("model stream finished")
	return err
}
