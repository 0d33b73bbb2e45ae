// Package toolexec executes the tool calls requested by the model and folds
// their results back into the conversation.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/tool"
	"github.com/felixgeelhaar/steploop/infrastructure/logging"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
)

// ErrorPrefix is prepended to the content of a failed tool call.
const ErrorPrefix = "error: "

// Executor runs pending tool calls against a registry.
type Executor struct {
	registry tool.Registry
	runner   *resilience.Executor
	tracer   trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithRunner sets the resilient runner used for every call.
func WithRunner(runner *resilience.Executor) Option {
	return func(e *Executor) {
		e.runner = runner
	}
}

// WithTracer emits a tool.execute span per call.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New creates an executor over the given registry.
func New(registry tool.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		tracer:   noop.NewTracerProvider().Tracer("toolexec"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = resilience.NewDefaultExecutor()
	}
	return e
}

// Registry returns the tools available to the executor.
func (e *Executor) Registry() tool.Registry {
	return e.registry
}

// Execute runs every tool call of pending and returns history followed by
// pending and one tool result per call, in call order. Tool failures become
// result content; the returned error is reserved for cancellation.
func (e *Executor) Execute(ctx context.Context, history []agent.Message, pending agent.Message) ([]agent.Message, error) {
	out := make([]agent.Message, 0, len(history)+1+len(pending.ToolCalls))
	out = append(out, history...)
	out = append(out, pending)

	for _, call := range pending.ToolCalls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content := e.invoke(ctx, call)
		out = append(out, agent.NewToolResultMessage(call.Name, call.ID, content))
	}
	return out, nil
}

func (e *Executor) invoke(ctx context.Context, call agent.ToolCall) string {
	ctx, span := e.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool.name", call.Name)),
	)
	defer span.End()

	start := time.Now()
	content, err := e.run(ctx, call)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Warn().
			Add(logging.ToolName(call.Name)).
			Add(logging.Duration(elapsed)).
			Add(logging.ErrorField(err)).
			Msg("tool execution failed")
		return ErrorPrefix + err.Error()
	}

	logging.Debug().
		Add(logging.ToolName(call.Name)).
		Add(logging.Duration(elapsed)).
		Msg("tool executed")
	return content
}

func (e *Executor) run(ctx context.Context, call agent.ToolCall) (string, error) {
	t, ok := e.registry.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", tool.ErrToolNotFound, call.Name)
	}

	input := json.RawMessage(call.Arguments)
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if !json.Valid(input) {
		return "", fmt.Errorf("%w: arguments for %s are not valid JSON", tool.ErrInvalidInput, call.Name)
	}
	if err := t.InputSchema().Validate(input); err != nil {
		return "", err
	}

	result, err := e.runner.Execute(ctx, t, input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", agent.ErrToolExecution, err)
	}
	if result.IsError() {
		return "", fmt.Errorf("%w: %w", agent.ErrToolExecution, result.Error)
	}
	return result.Text(), nil
}
