package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/steploop/domain/agent"
	"github.com/felixgeelhaar/steploop/domain/history"
	"github.com/felixgeelhaar/steploop/infrastructure/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.HistoryStore {
	t.Helper()

	cfg := sqlite.DefaultConfig()
	cfg.DSN = "file:" + t.TempDir() + "/test.db?mode=rwc"

	store, err := sqlite.NewHistoryStore(cfg)
	if err != nil {
		t.Fatalf("NewHistoryStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHistoryStore_AppendAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Append(ctx, "conv",
		agent.NewUserMessage("scrape it"),
		agent.NewAssistantMessage("", agent.ToolCall{ID: "t1", Name: "web_scrape", Arguments: `{"url":"x"}`}),
		agent.NewToolResultMessage("web_scrape", "t1", "Title: x"),
	)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, "conv", agent.NewAssistantMessage("done")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, "other", agent.NewUserMessage("unrelated")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	all, err := store.Load(ctx, "conv", 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Load returned %d messages, want 4", len(all))
	}
	if all[0].Role != agent.RoleUser || all[3].Content != "done" {
		t.Errorf("order = %+v", all)
	}
	if len(all[1].ToolCalls) != 1 || all[1].ToolCalls[0].Name != "web_scrape" {
		t.Errorf("ToolCalls = %+v", all[1].ToolCalls)
	}
	if all[2].ToolName != "web_scrape" || all[2].ToolCallID != "t1" {
		t.Errorf("tool result = %+v", all[2])
	}

	tail, err := store.Load(ctx, "conv", 2)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tail) != 2 || tail[0].Role != agent.RoleToolResult || tail[1].Content != "done" {
		t.Errorf("Load(2) = %+v", tail)
	}
}

func TestHistoryStore_Clear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Append(ctx, "conv", agent.NewUserMessage("x"))
	if err := store.Clear(ctx, "conv"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	msgs, err := store.Load(ctx, "conv", 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Load after Clear returned %d messages", len(msgs))
	}

	if err := store.Append(ctx, "conv", agent.NewUserMessage("again")); err != nil {
		t.Errorf("Append after Clear failed: %v", err)
	}
}

func TestHistoryStore_InvalidID(t *testing.T) {
	store := newTestStore(t)

	if err := store.Append(context.Background(), "", agent.NewUserMessage("x")); !errors.Is(err, history.ErrInvalidConversationID) {
		t.Errorf("Append error = %v, want ErrInvalidConversationID", err)
	}
	if _, err := store.Load(context.Background(), " ", 0); !errors.Is(err, history.ErrInvalidConversationID) {
		t.Errorf("Load error = %v, want ErrInvalidConversationID", err)
	}
}
