// Package agent runs the think/act loop: it drains inbound messages, drives
// the model through rounds of tool use, and publishes the final answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"nanoagent/internal/domain"
	"nanoagent/internal/skill"
	"nanoagent/internal/tool"
)

// Catalogue fronts the tool registry and the skill registry as one action
// namespace. Tools win on name collisions.
type Catalogue struct {
	tools    *tool.Registry
	skills   *skill.Registry
	executor *skill.Executor
	logger   *slog.Logger
}

func NewCatalogue(tools *tool.Registry, skills *skill.Registry, executor *skill.Executor, logger *slog.Logger) *Catalogue {
	return &Catalogue{tools: tools, skills: skills, executor: executor, logger: logger}
}

// Resolve looks up name first as a tool, then as a skill.
func (c *Catalogue) Resolve(name string) (*domain.ToolDescriptor, bool) {
	if t := c.tools.Get(name); t != nil {
		return &domain.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}, true
	}
	if c.skills != nil {
		if def, ok := c.skills.Get(name); ok {
			return &domain.ToolDescriptor{
				Name:        def.Name,
				Description: def.Description,
			}, true
		}
	}
	return nil, false
}

// Execute runs name with input. String inputs are promoted to the tool's
// primary argument; object inputs pass through as-is.
func (c *Catalogue) Execute(ctx context.Context, name string, input any, msg domain.InboundMessage) (string, error) {
	if t := c.tools.Get(name); t != nil {
		args := coerceArgs(name, input)
		if msg.CurrentDir != "" {
			if _, set := args["workdir"]; !set {
				args["workdir"] = msg.CurrentDir
			}
		}
		return c.tools.Execute(ctx, name, args)
	}
	if c.skills != nil && c.executor != nil {
		if def, ok := c.skills.Get(name); ok {
			return c.executor.Execute(ctx, def, skillInput(input, msg))
		}
	}
	return "", fmt.Errorf("unknown action: %s", name)
}

// Definitions exposes tools and skills together for prompt building.
func (c *Catalogue) Definitions() []domain.ToolDefinition {
	defs := c.tools.Definitions()
	if c.skills == nil {
		return defs
	}
	for _, s := range c.skills.List() {
		defs = append(defs, domain.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters: tool.Parameters(map[string]tool.Param{
				"input": {Type: "string", Description: "Request text for the skill"},
			}, []string{"input"}),
		})
	}
	return defs
}

func coerceArgs(toolName string, input any) map[string]any {
	switch v := input.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case string:
		if key, ok := tool.PrimaryArg(toolName); ok {
			return map[string]any{key: v}
		}
		return map[string]any{"input": v}
	default:
		return map[string]any{"input": fmt.Sprintf("%v", v)}
	}
}

func skillInput(input any, msg domain.InboundMessage) string {
	switch v := input.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if s, ok := v["input"].(string); ok && s != "" {
			return s
		}
	}
	return msg.Content
}
