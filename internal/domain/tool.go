package domain

import "context"

// Tool is the interface for agent capabilities (files, web, database, etc).
// Execute may return an error; the registry converts any error into a
// user-facing text result at a single point, so tool failures never
// propagate into the agent loop.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolExecutor is the capability a nested agent (sub-agent) holds on the
// registry: schema export plus execution, nothing else.
type ToolExecutor interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) string
}
