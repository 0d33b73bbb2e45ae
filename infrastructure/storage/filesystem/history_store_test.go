package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
)

func TestHistoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "memory")
	store, err := NewHistoryStore(dir)
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}

	call := agent.ToolCall{ID: "c1", Name: "terminate", Arguments: "{}"}
	err = store.Append(ctx, "chat-1",
		agent.NewUserMessage("hi"),
		agent.NewAssistantMessage("", call),
		agent.NewToolResultMessage("terminate", "c1", "done"),
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, "chat-1", agent.NewAssistantMessage("bye")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	all, err := store.Load(ctx, "chat-1", 0)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Load() len = %d, want 4", len(all))
	}
	if all[1].ToolCalls[0] != call {
		t.Errorf("ToolCalls = %+v, want %+v", all[1].ToolCalls, call)
	}
	if all[2].ToolCallID != "c1" || all[2].Role != agent.RoleToolResult {
		t.Errorf("tool result = %+v", all[2])
	}

	tail, _ := store.Load(ctx, "chat-1", 1)
	if len(tail) != 1 || tail[0].Content != "bye" {
		t.Errorf("Load(1) = %+v, want [bye]", tail)
	}

	info, err := os.Stat(filepath.Join(dir, "chat-1.json"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestHistoryStore_Missing(t *testing.T) {
	t.Parallel()

	store, _ := NewHistoryStore(t.TempDir())

	msgs, err := store.Load(context.Background(), "nobody", 5)
	if err != nil || len(msgs) != 0 {
		t.Errorf("Load() = %v, %v, want empty", msgs, err)
	}
	if err := store.Clear(context.Background(), "nobody"); err != nil {
		t.Errorf("Clear() missing error = %v", err)
	}
}

func TestHistoryStore_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := NewHistoryStore(t.TempDir())
	_ = store.Append(ctx, "c", agent.NewUserMessage("x"))

	if err := store.Clear(ctx, "c"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "c.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file should be removed, Stat() error = %v", err)
	}
}

func TestHistoryStore_RejectsPaths(t *testing.T) {
	t.Parallel()

	store, _ := NewHistoryStore(t.TempDir())
	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		if err := store.Append(context.Background(), id, agent.NewUserMessage("x")); !errors.Is(err, history.ErrInvalidConversationID) {
			t.Errorf("Append(%q) error = %v, want ErrInvalidConversationID", id, err)
		}
	}
}

func TestHistoryStore_CorruptFile(t *testing.T) {
	t.Parallel()

	store, _ := NewHistoryStore(t.TempDir())
	if err := os.WriteFile(filepath.Join(store.Dir(), "bad.json"), []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(context.Background(), "bad", 0); err == nil {
		t.Error("Load() expected decode error")
	}
}
