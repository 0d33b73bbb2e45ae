package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/steploop/domain/tool"
)

func newTool(name string) tool.Tool {
	return tool.NewBuilder(name).
		WithDescription("Test " + name).
		WithHandler(func(_ context.Context, _ json.RawMessage) (tool.Result, error) {
			return tool.NewTextResult(name), nil
		}).
		MustBuild()
}

func TestNewToolRegistry(t *testing.T) {
	t.Parallel()

	registry, err := NewToolRegistry(newTool("b"), newTool("a"))
	if err != nil {
		t.Fatalf("NewToolRegistry() error = %v", err)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Errorf("Names() = %v, want [b a]", names)
	}

	if _, err := NewToolRegistry(newTool("x"), newTool("x")); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("NewToolRegistry() duplicate error = %v, want ErrToolExists", err)
	}
}

func TestToolRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	registry, _ := NewToolRegistry()

	if err := registry.Register(newTool("terminate")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(newTool("terminate")); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("Register() duplicate error = %v, want ErrToolExists", err)
	}
	if err := registry.Register(nil); !errors.Is(err, tool.ErrEmptyName) {
		t.Errorf("Register(nil) error = %v, want ErrEmptyName", err)
	}

	if !registry.Has("terminate") {
		t.Error("Has(terminate) = false, want true")
	}
	got, ok := registry.Get("terminate")
	if !ok || got.Name() != "terminate" {
		t.Errorf("Get(terminate) = %v, %v", got, ok)
	}
	if _, ok := registry.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}

	if err := registry.Unregister("terminate"); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
	if err := registry.Unregister("terminate"); !errors.Is(err, tool.ErrToolNotFound) {
		t.Errorf("Unregister() twice error = %v, want ErrToolNotFound", err)
	}
	if len(registry.List()) != 0 {
		t.Errorf("List() len = %d, want 0", len(registry.List()))
	}
}

func TestToolRegistry_ListOrder(t *testing.T) {
	t.Parallel()

	registry, _ := NewToolRegistry(newTool("one"), newTool("two"), newTool("three"))
	_ = registry.Unregister("two")

	list := registry.List()
	if len(list) != 2 || list[0].Name() != "one" || list[1].Name() != "three" {
		t.Errorf("List() = %v, want [one three]", list)
	}
}
