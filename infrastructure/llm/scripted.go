package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// ErrScriptExhausted indicates the scripted provider ran out of replies.
var ErrScriptExhausted = errors.New("script exhausted")

// ScriptedReply is one pre-programmed model reply.
type ScriptedReply struct {
	Content   string
	ToolCalls []agent.ToolCall
	Err       error
}

// Reply creates a scripted assistant reply.
func Reply(content string, calls ...agent.ToolCall) ScriptedReply {
	return ScriptedReply{Content: content, ToolCalls: calls}
}

// Failure creates a scripted model failure.
func Failure(err error) ScriptedReply {
	return ScriptedReply{Err: err}
}

// Call creates a tool call with a generated id.
func Call(name, arguments string) agent.ToolCall {
	return agent.ToolCall{ID: uuid.NewString(), Name: name, Arguments: arguments}
}

// ScriptedProvider replays a fixed sequence of replies. It backs tests and
// the offline "scripted" provider.
type ScriptedProvider struct {
	mu       sync.Mutex
	replies  []ScriptedReply
	index    int
	repeat   bool
	requests []CompletionRequest
}

// NewScriptedProvider creates a provider that returns replies in order and
// fails with ErrScriptExhausted afterwards.
func NewScriptedProvider(replies ...ScriptedReply) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

// RepeatLast makes the provider keep returning the final reply once the
// script is exhausted.
func (p *ScriptedProvider) RepeatLast() *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = true
	return p
}

// Name returns the provider name.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Complete returns the next scripted reply.
func (p *ScriptedProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	reply, err := p.next(req)
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{
		Message: agent.NewAssistantMessage(reply.Content, reply.ToolCalls...),
		Model:   "scripted",
	}, nil
}

// CompleteStream emits the next scripted reply word by word.
func (p *ScriptedProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	reply, err := p.next(req)
	if err != nil {
		return err
	}
	words := strings.SplitAfter(reply.Content, " ")
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w == "" {
			continue
		}
		if err := onChunk(w); err != nil {
			return err
		}
	}
	return nil
}

func (p *ScriptedProvider) next(req CompletionRequest) (ScriptedReply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.index >= len(p.replies) {
		if p.repeat && len(p.replies) > 0 {
			return p.replies[len(p.replies)-1], nil
		}
		return ScriptedReply{}, ErrScriptExhausted
	}

	reply := p.replies[p.index]
	p.index++
	if reply.Err != nil {
		return ScriptedReply{}, reply.Err
	}
	return reply, nil
}

// Requests returns the requests received so far.
func (p *ScriptedProvider) Requests() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// Calls returns how many completions were requested.
func (p *ScriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}
