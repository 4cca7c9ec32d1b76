// Package tool holds the built-in tool catalogue: shell, file ops, web
// access, system info, time, and screenshots.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"nanoagent/internal/domain"
)

// Registry maps tool names to implementations and executes them.
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

// Register adds or replaces a tool by name. Re-registration is idempotent,
// matching extension-loader semantics.
func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.logger.Debug("tool registered", "name", t.Name())
}

func (r *Registry) Get(name string) domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t := r.Get(name)
	if t == nil {
		return "", fmt.Errorf("unknown tool: %s (available: %v)", name, r.Names())
	}
	return t.Execute(ctx, args)
}

// Definitions returns the prompt-facing descriptions of every tool, sorted
// by name so prompts are stable.
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

// Param describes one tool parameter for Parameters schemas.
type Param struct {
	Type        string
	Description string
}

// Parameters builds a JSON Schema object for a tool's parameters.
func Parameters(properties map[string]Param, required []string) map[string]any {
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

// primaryArgs names the argument a bare string input fills for each
// built-in tool. Models and skill steps frequently supply plain text instead
// of an argument object; promotion keeps those calls usable.
var primaryArgs = map[string]string{
	"shell":        "command",
	"read_file":    "path",
	"write_file":   "path",
	"list_dir":     "path",
	"web_fetch":    "url",
	"web_search":   "query",
	"screenshot":   "url",
	"current_time": "timezone",
}

// PrimaryArg reports the argument name a bare string input maps to for name.
func PrimaryArg(name string) (string, bool) {
	key, ok := primaryArgs[name]
	return key, ok
}

// ArgString extracts a string argument; non-string values are JSON-encoded.
func ArgString(args map[string]any, key string) string {
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
