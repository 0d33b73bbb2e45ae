package llm

import (
	"context"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

type rereadProvider struct {
	next Provider
}

// WithReReading repeats the latest user question inside the same turn
// ("Re2" prompting), which tends to help smaller models.
func WithReReading(p Provider) StreamingProvider {
	return &rereadProvider{next: p}
}

// ReRead rewrites the most recent user message q to
// q + "\nRead the question again: " + q. The input slice is not modified.
func ReRead(messages []agent.Message) []agent.Message {
	i := lastUserIndex(messages)
	if i < 0 || messages[i].IsBlank() {
		return messages
	}
	out := make([]agent.Message, len(messages))
	copy(out, messages)
	q := out[i].Content
	out[i].Content = q + "\nRead the question again: " + q
	return out
}

func (r *rereadProvider) Name() string {
	return r.next.Name()
}

func (r *rereadProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	req.Messages = ReRead(req.Messages)
	return r.next.Complete(ctx, req)
}

func (r *rereadProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	req.Messages = ReRead(req.Messages)
	return StreamOrComplete(ctx, r.next, req, onChunk)
}
