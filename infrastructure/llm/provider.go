// Package llm implements the model collaborator: provider adapters that turn
// a conversation log into an assistant message with optional tool calls.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/tool"
)

var (
	// ErrNoChoices indicates the provider returned no completion.
	ErrNoChoices = errors.New("no choices in response")

	// ErrStreamingNotSupported indicates the provider cannot stream.
	ErrStreamingNotSupported = errors.New("streaming not supported")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown model provider")
)

// Provider defines the interface for model providers.
type Provider interface {
	// Complete sends a chat completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Name returns the provider name for logging.
	Name() string
}

// StreamingProvider extends Provider with incremental delivery.
type StreamingProvider interface {
	Provider

	// CompleteStream streams the assistant text, calling onChunk per delta.
	// An error returned by onChunk aborts the stream.
	CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(chunk string) error) error
}

// CompletionRequest represents a chat completion request.
type CompletionRequest struct {
	// System is the system instruction.
	System string

	// Messages is the ordered conversation log.
	Messages []agent.Message

	// Tools are the tools the model may call.
	Tools []ToolSpec

	// Model overrides the provider default when set.
	Model string

	// Temperature overrides the provider default when positive.
	Temperature float64

	// MaxTokens overrides the provider default when positive.
	MaxTokens int
}

// ToolSpec describes a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// CompletionResponse represents a chat completion response.
type CompletionResponse struct {
	// Message is the assistant message, including requested tool calls.
	Message agent.Message

	// Model is the model that served the request.
	Model string

	// Usage contains token usage information.
	Usage Usage
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SpecsFrom describes tools for a completion request.
func SpecsFrom(tools []tool.Tool) []ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema().Raw()
		if len(params) == 0 {
			params = tool.EmptySchema().Raw()
		}
		specs = append(specs, ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return specs
}

// StreamOrComplete streams through p when it supports streaming and
// otherwise delivers the whole completion as a single chunk.
func StreamOrComplete(ctx context.Context, p Provider, req CompletionRequest, onChunk func(string) error) error {
	if sp, ok := p.(StreamingProvider); ok {
		err := sp.CompleteStream(ctx, req, onChunk)
		if !errors.Is(err, ErrStreamingNotSupported) {
			return err
		}
	}

	resp, err := p.Complete(ctx, req)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil
	}
	return onChunk(resp.Message.Content)
}

// lastUserIndex returns the index of the most recent user message, or -1.
func lastUserIndex(messages []agent.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == agent.RoleUser {
			return i
		}
	}
	return -1
}
