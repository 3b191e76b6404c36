// Package tools defines the tool abstraction agents invoke through the
// authorization proxy, and a registry of available tools.
package tools

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/services"
)

// Tool is an invocable capability. Execute must be safe for concurrent
// use; panics are contained by the proxy, not here.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params map[string]interface{}) (interface{}, error)
	Schema() map[string]interface{}
}

// Registry holds the tools available to the control plane
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{tools: make(map[string]Tool), logger: logger}
}

// Register adds or replaces a tool under its name
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.logger.Info("tool registered", zap.String("tool_name", tool.Name()))
}

// Get returns the tool with the given name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, services.ErrToolNotFound
	}
	return tool, nil
}

// List returns the registered tool names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
