package domain

// SkillTrigger defines how a skill is matched to user input.
type SkillTrigger struct {
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// SkillStep is one step of a skill: run a tool or ask the model.
type SkillStep struct {
	Action string         `json:"action" yaml:"action"` // tool | llm
	Tool   string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Prompt string         `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Args   map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// SkillDefinition describes a reusable multi-step workflow. Registered
// skill names are valid agent actions.
type SkillDefinition struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Version     string       `json:"version,omitempty" yaml:"version,omitempty"`
	Trigger     SkillTrigger `json:"trigger" yaml:"trigger"`
	Steps       []SkillStep  `json:"steps" yaml:"steps"`
	BuiltIn     bool         `json:"built_in" yaml:"-"`
}
