package domain

import "context"

// Tool is a capability the agent can invoke (shell, file ops, web, ...).
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolDefinition is the prompt-facing description of a tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDescriptor is what a catalogue lookup returns for an action name.
// The core resolves names to descriptors; it never creates tools itself.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Catalogue is the live tool/skill catalogue the agent resolves actions
// against. Execute is an opaque, possibly failing call.
type Catalogue interface {
	Resolve(name string) (*ToolDescriptor, bool)
	Execute(ctx context.Context, name string, input any, msg InboundMessage) (string, error)
	Definitions() []ToolDefinition
}
