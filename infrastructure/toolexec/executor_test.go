package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/tool"
	"github.com/felixgeelhaar/steploop/infrastructure/resilience"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/memory"
)

func newRegistry(t *testing.T, tools ...tool.Tool) *memory.ToolRegistry {
	t.Helper()
	registry, err := memory.NewToolRegistry(tools...)
	if err != nil {
		t.Fatalf("NewToolRegistry() error = %v", err)
	}
	return registry
}

func echoTool() tool.Tool {
	return tool.NewBuilder("echo").
		WithHandler(func(_ context.Context, input json.RawMessage) (tool.Result, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return tool.Result{}, err
			}
			return tool.NewTextResult("echo: " + in.Text), nil
		}).
		MustBuild()
}

func failingTool() tool.Tool {
	return tool.NewBuilder("broken").
		WithHandler(func(_ context.Context, _ json.RawMessage) (tool.Result, error) {
			return tool.Result{}, errors.New("disk on fire")
		}).
		MustBuild()
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	exec := New(newRegistry(t, echoTool(), failingTool()),
		WithRunner(resilience.NewExecutorWithOptions(resilience.WithRetryAttempts(1))))

	history := []agent.Message{agent.NewUserMessage("do things")}
	pending := agent.NewAssistantMessage("calling tools",
		agent.ToolCall{ID: "1", Name: "echo", Arguments: `{"text":"hi"}`},
		agent.ToolCall{ID: "2", Name: "broken", Arguments: `{}`},
		agent.ToolCall{ID: "3", Name: "missing", Arguments: `{}`},
		agent.ToolCall{ID: "4", Name: "echo", Arguments: `{not json`},
	)

	out, err := exec.Execute(context.Background(), history, pending)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}
	if out[0].Content != "do things" || out[1].Content != "calling tools" {
		t.Errorf("history prefix = %v", out[:2])
	}

	tests := []struct {
		idx      int
		callID   string
		toolName string
		contains string
	}{
		{2, "1", "echo", "echo: hi"},
		{3, "2", "broken", "error: "},
		{4, "3", "missing", "tool not found"},
		{5, "4", "echo", "not valid JSON"},
	}
	for _, tt := range tests {
		msg := out[tt.idx]
		if msg.Role != agent.RoleToolResult {
			t.Errorf("out[%d].Role = %s, want tool", tt.idx, msg.Role)
		}
		if msg.ToolCallID != tt.callID || msg.ToolName != tt.toolName {
			t.Errorf("out[%d] = %s/%s, want %s/%s", tt.idx, msg.ToolCallID, msg.ToolName, tt.callID, tt.toolName)
		}
		if !strings.Contains(msg.Content, tt.contains) {
			t.Errorf("out[%d].Content = %q, want to contain %q", tt.idx, msg.Content, tt.contains)
		}
	}
	if !strings.HasPrefix(out[3].Content, ErrorPrefix) {
		t.Errorf("failed tool content = %q, want error prefix", out[3].Content)
	}
}

func TestExecutor_EmptyArguments(t *testing.T) {
	t.Parallel()

	noArgs := tool.NewBuilder("ping").
		WithHandler(func(_ context.Context, input json.RawMessage) (tool.Result, error) {
			return tool.NewResult(json.RawMessage(`{"pong":true}`)), nil
		}).
		MustBuild()

	exec := New(newRegistry(t, noArgs))
	out, err := exec.Execute(context.Background(), nil,
		agent.NewAssistantMessage("", agent.ToolCall{ID: "p", Name: "ping"}))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out[1].Content != `{"pong":true}` {
		t.Errorf("Content = %q, want raw JSON object", out[1].Content)
	}
}

func TestExecutor_Cancelled(t *testing.T) {
	t.Parallel()

	exec := New(newRegistry(t, echoTool()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, nil, agent.NewAssistantMessage("",
		agent.ToolCall{ID: "1", Name: "echo", Arguments: `{"text":"x"}`}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestExecutor_DoesNotMutateHistory(t *testing.T) {
	t.Parallel()

	exec := New(newRegistry(t, echoTool()))
	history := make([]agent.Message, 1, 4)
	history[0] = agent.NewUserMessage("q")

	_, _ = exec.Execute(context.Background(), history, agent.NewAssistantMessage("",
		agent.ToolCall{ID: "1", Name: "echo", Arguments: `{"text":"x"}`}))

	if len(history) != 1 || history[0].Content != "q" {
		t.Errorf("history = %v, want unchanged", history)
	}
}
