package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"merobot/internal/domain"
)

// DuplicateToolError reports a second registration under an existing name.
// This is a configuration error, fatal at startup.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// Registry holds all available tools, validates arguments against their
// declared schemas, and executes them.
//
// Execute never returns an error: unknown tools, invalid arguments, tool
// failures, and tool panics are all converted to descriptive text here, at
// a single point, so the agent loop always receives a renderable result.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds a tool. Returns *DuplicateToolError if a tool with the
// same name already exists.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return &DuplicateToolError{Name: t.Name()}
	}
	r.tools[t.Name()] = t
	r.logger.Debug("registered tool", "name", t.Name())
	return nil
}

// Unregister removes a tool by name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

func (r *Registry) Get(name string) domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions exports every registered tool's schema in the model-facing
// function-call shape, sorted by name for a stable export.
func (r *Registry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, domain.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute looks up, validates, and runs a tool, returning its text result.
// Every failure mode is rendered as text; it never panics and never
// surfaces an error to the caller.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result string) {
	t := r.Get(name)
	if t == nil {
		return fmt.Sprintf("Error: tool %q not found (available: %s)", name, strings.Join(r.Names(), ", "))
	}

	if errs := ValidateArgs(args, t.Parameters()); len(errs) > 0 {
		r.logger.Warn("tool argument validation failed", "tool", name, "errors", errs)
		return fmt.Sprintf("Error: invalid arguments for tool %q: %s", name, strings.Join(errs, "; "))
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", rec)
			result = fmt.Sprintf("Error: executing %q: panic: %v", name, rec)
		}
	}()

	out, err := t.Execute(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed", "tool", name, "err", err)
		return fmt.Sprintf("Error: executing %q: %s", name, err.Error())
	}
	return out
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
}

// ToolParameters builds a JSON Schema "parameters" object for a tool.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		props[name] = map[string]any{"type": p.Type, "description": p.Description}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ArgsString extracts a string argument, marshalling non-string values.
func ArgsString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
