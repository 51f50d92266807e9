// Package registry maps tool identifiers to the API id they are metered
// against. The mapping is built once at startup; tools with no entry are
// unmetered.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tool describes a registered tool and its metering binding
type Tool struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	// APIID names the global API this tool's calls count against.
	// Empty means the tool is not metered.
	APIID string `json:"api_id,omitempty"`
}

// Registry is a startup-built mapping from tool id to metering API id.
// Registration happens during wiring; lookups are concurrent-safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates an empty tool registry
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// FromSpecs builds a registry from "tool_id:api_id" entries. A bare
// "tool_id" registers an unmetered tool.
func FromSpecs(specs []string) (*Registry, error) {
	r := New()
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		toolID, apiID, _ := strings.Cut(spec, ":")
		if err := r.Register(Tool{ID: toolID, APIID: apiID}); err != nil {
			return nil, fmt.Errorf("tool spec %q: %w", spec, err)
		}
	}
	return r, nil
}

// Register adds a tool. Duplicate ids are a wiring bug and rejected.
func (r *Registry) Register(tool Tool) error {
	if tool.ID == "" {
		return fmt.Errorf("tool id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.ID]; exists {
		return fmt.Errorf("tool %q already registered", tool.ID)
	}
	r.tools[tool.ID] = tool
	return nil
}

// Lookup returns the tool for an id
func (r *Registry) Lookup(toolID string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[toolID]
	return tool, ok
}

// APIID returns the metering API id for a tool. The second return is false
// when the tool is unknown; a known but unmetered tool returns ("", true).
func (r *Registry) APIID(toolID string) (string, bool) {
	tool, ok := r.Lookup(toolID)
	if !ok {
		return "", false
	}
	return tool.APIID, true
}

// List returns all registered tools ordered by id
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].ID < tools[j].ID })
	return tools
}
