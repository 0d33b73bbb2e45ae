package agent

import (
	"strings"
	"sync"
)

// Role tags a message in the conversation log.
type Role string

// Message roles.
const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of the conversation log.
// ToolName and ToolCallID are only set for tool results; ToolCalls only for
// assistant messages that request tool invocations.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage creates a tool result message.
func NewToolResultMessage(toolName, callID, content string) Message {
	return Message{
		Role:       RoleToolResult,
		Content:    content,
		ToolName:   toolName,
		ToolCallID: callID,
	}
}

// IsBlank returns true if the message text is empty or whitespace only.
func (m Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// HasToolCalls returns true if the message requests tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// MessageLog is the ordered conversation context fed to the model.
// The step loop is the only writer during a run; Clear may be called by a
// hard termination from another goroutine.
type MessageLog struct {
	mu       sync.RWMutex
	messages []Message
	sealed   bool
}

// NewMessageLog creates a log seeded with the given messages.
func NewMessageLog(messages ...Message) *MessageLog {
	l := &MessageLog{}
	l.messages = append(l.messages, messages...)
	return l
}

// Append adds messages to the end of the log.
func (l *MessageLog) Append(messages ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return
	}
	l.messages = append(l.messages, messages...)
}

// Replace swaps the whole log for the given history.
func (l *MessageLog) Replace(messages []Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return
	}
	l.messages = append([]Message(nil), messages...)
}

// Clear discards every message.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

// Seal discards every message and drops all later writes.
func (l *MessageLog) Seal() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.sealed = true
}

// Messages returns a copy of the log in order.
func (l *MessageLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the most recent message.
func (l *MessageLog) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
