package agent

import (
	"sync"
	"testing"
)

func TestMessage_IsBlank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", true},
		{"spaces", "   ", true},
		{"newlines", "\n\t\n", true},
		{"text", "hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewUserMessage(tt.content).IsBlank(); got != tt.want {
				t.Errorf("IsBlank() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewToolResultMessage(t *testing.T) {
	t.Parallel()

	m := NewToolResultMessage("terminate", "call-1", "done")

	if m.Role != RoleToolResult {
		t.Errorf("Role = %s, want %s", m.Role, RoleToolResult)
	}
	if m.ToolName != "terminate" {
		t.Errorf("ToolName = %s, want terminate", m.ToolName)
	}
	if m.ToolCallID != "call-1" {
		t.Errorf("ToolCallID = %s, want call-1", m.ToolCallID)
	}
}

func TestNewAssistantMessage_ToolCalls(t *testing.T) {
	t.Parallel()

	plain := NewAssistantMessage("thinking")
	if plain.HasToolCalls() {
		t.Error("plain assistant message should have no tool calls")
	}

	withCalls := NewAssistantMessage("calling", ToolCall{ID: "1", Name: "web_scrape"})
	if !withCalls.HasToolCalls() {
		t.Error("assistant message should report tool calls")
	}
}

func TestMessageLog(t *testing.T) {
	t.Parallel()

	log := NewMessageLog(NewUserMessage("one"))
	log.Append(NewAssistantMessage("two"), NewUserMessage("three"))

	if log.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", log.Len())
	}

	last, ok := log.Last()
	if !ok || last.Content != "three" {
		t.Errorf("Last() = %v, %v, want three, true", last.Content, ok)
	}

	msgs := log.Messages()
	msgs[0].Content = "mutated"
	if log.Messages()[0].Content != "one" {
		t.Error("Messages() should return a copy")
	}

	log.Replace([]Message{NewUserMessage("fresh")})
	if log.Len() != 1 {
		t.Errorf("Len() after Replace = %d, want 1", log.Len())
	}

	log.Clear()
	if log.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", log.Len())
	}
	if _, ok := log.Last(); ok {
		t.Error("Last() on empty log should return false")
	}
}

func TestMessageLog_Seal(t *testing.T) {
	t.Parallel()

	log := NewMessageLog(NewUserMessage("one"))
	log.Seal()
	log.Append(NewAssistantMessage("late"))
	log.Replace([]Message{NewUserMessage("replaced")})

	if log.Len() != 0 {
		t.Errorf("Len() after Seal = %d, want 0", log.Len())
	}
}

func TestMessageLog_ConcurrentClear(t *testing.T) {
	t.Parallel()

	log := NewMessageLog()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			log.Append(NewAssistantMessage("x"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			log.Clear()
		}
	}()
	wg.Wait()

	if log.Len() > 100 {
		t.Errorf("Len() = %d, want <= 100", log.Len())
	}
}
