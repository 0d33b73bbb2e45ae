// Package memory provides in-memory storage implementations.
package memory

import (
	"sync"

	"github.com/felixgeelhaar/steploop/domain/tool"
)

// ToolRegistry is an in-memory implementation of tool.Registry.
// List and Names report tools in registration order, which is the order the
// model sees them in.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
	order []string
}

// NewToolRegistry creates a registry holding the given tools.
func NewToolRegistry(tools ...tool.Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]tool.Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool to the registry.
func (r *ToolRegistry) Register(t tool.Tool) error {
	if t == nil || t.Name() == "" {
		return tool.ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return tool.ErrToolExists
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
	return nil
}

// Get retrieves a tool by name.
func (r *ToolRegistry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools.
func (r *ToolRegistry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]tool.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Names returns all registered tool names.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Has checks if a tool is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Unregister removes a tool from the registry.
func (r *ToolRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return tool.ErrToolNotFound
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

var _ tool.Registry = (*ToolRegistry)(nil)
