package llm

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingProvider struct {
	next   Provider
	tracer trace.Tracer
}

// WithTracing wraps every completion in a model.complete span.
func WithTracing(p Provider, tracer trace.Tracer) StreamingProvider {
	return &tracingProvider{next: p, tracer: tracer}
}

func (t *tracingProvider) Name() string {
	return t.next.Name()
}

func (t *tracingProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	ctx, span := t.tracer.Start(ctx, "model.complete",
		trace.WithAttributes(
			attribute.String("llm.provider", t.next.Name()),
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
		),
	)
	defer span.End()

	resp, err := t.next.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetAttributes(
		attribute.Int("llm.tool_calls", len(resp.Message.ToolCalls)),
		attribute.Int("llm.total_tokens", resp.Usage.TotalTokens),
	)
	return resp, nil
}

func (t *tracingProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	ctx, span := t.tracer.Start(ctx, "model.stream",
		trace.WithAttributes(attribute.String("llm.provider", t.next.Name())),
	)
	defer span.End()

	err := StreamOrComplete(ctx, t.next, req, onChunk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
