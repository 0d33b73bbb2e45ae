package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/felixgeelhaar/steploop/domain/agent"
)

// OpenAIProvider talks to OpenAI-compatible chat completion endpoints.
// DashScope and Ollama work through BaseURL.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey      string        // API key sent as a bearer token
	BaseURL     string        // Default: https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini", "qwen-plus"
	Temperature float64       // Default sampling temperature
	MaxTokens   int           // Default completion cap
	Timeout     time.Duration // HTTP timeout (default: 120s)
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete implements the Provider interface.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, ErrNoChoices
	}

	choice := resp.Choices[0].Message
	calls := make([]agent.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		calls = append(calls, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return CompletionResponse{
		Message: agent.NewAssistantMessage(choice.Content, calls...),
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// CompleteStream implements the StreamingProvider interface.
func (p *OpenAIProvider) CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(string) error) error {
	chatReq := p.buildRequest(req)
	chatReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := onChunk(delta); err != nil {
				return err
			}
		}
	}
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, toOpenAIMessage(m))
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	for _, spec := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return chatReq
}

func toOpenAIMessage(m agent.Message) openai.ChatCompletionMessage {
	switch m.Role {
	case agent.RoleAssistant:
		msg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: m.Content,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return msg
	case agent.RoleToolResult:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    m.Content,
			Name:       m.ToolName,
			ToolCallID: m.ToolCallID,
		}
	default:
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: m.Content,
		}
	}
}
