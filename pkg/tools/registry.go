package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds tools keyed by name. It is constructed explicitly and passed
// by reference to the components that need it; there is no ambient global
// registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	executions metric.Int64Counter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	meter := otel.Meter("loom/tools")
	r.executions, _ = meter.Int64Counter("loom.tool.executions",
		metric.WithDescription("Tool executions through the registry, by tool and outcome."))
	return r
}

// NewRegistryWithBuiltins creates a registry pre-populated with the built-in tools.
func NewRegistryWithBuiltins() *Registry {
	r := NewRegistry()
	for _, tool := range Builtins() {
		// Built-in names are unique by construction.
		_ = r.Register(tool)
	}
	return r
}

// Register adds a tool. Names must be unique and non-empty.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Unregister removes a tool by name, reporting whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	return true
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute validates params against the tool schema and runs the executor.
// It never panics and never returns an error: every failure mode is reported
// through the Result value.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (result Result) {
	defer func() {
		outcome := "success"
		if !result.Success {
			outcome = "failure"
		}
		r.executions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", name),
			attribute.String("outcome", outcome),
		))
	}()

	tool, ok := r.Get(name)
	if !ok {
		return Fail("Tool not found: " + name)
	}

	if msgs := ValidateParams(tool.Schema(), params); len(msgs) > 0 {
		return Fail(strings.Join(msgs, "; "))
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Fail(fmt.Sprintf("%v", rec))
		}
	}()
	return tool.Execute(ctx, params)
}

// ValidateParams checks params against a schema: every required field must be
// present and every supplied key must appear in the property set.
func ValidateParams(schema Schema, params map[string]any) []string {
	var msgs []string
	for _, required := range schema.Required {
		if _, ok := params[required]; !ok {
			msgs = append(msgs, fmt.Sprintf("missing required parameter: %s", required))
		}
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := schema.Properties[key]; !ok {
			msgs = append(msgs, fmt.Sprintf("unknown parameter: %s", key))
		}
	}
	return msgs
}
