// Package skill implements reusable multi-step workflows matched by keyword
// or pattern triggers. Registered skill names double as agent actions.
package skill

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"nanoagent/internal/domain"
)

// Registry manages skill definitions and matches them to user input.
type Registry struct {
	skills        []domain.SkillDefinition
	compiledRegex map[string]*regexp.Regexp
	lowerKeywords map[string][]string
	mu            sync.RWMutex
	logger        *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		compiledRegex: make(map[string]*regexp.Regexp),
		lowerKeywords: make(map[string][]string),
		logger:        logger,
	}
}

// Register adds a skill, pre-compiling its trigger pattern and lowering its
// keywords. Registering an existing name replaces the definition.
func (r *Registry) Register(def domain.SkillDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kws := make([]string, len(def.Trigger.Keywords))
	for i, kw := range def.Trigger.Keywords {
		kws[i] = strings.ToLower(kw)
	}
	r.lowerKeywords[def.Name] = kws

	if def.Trigger.Pattern != "" {
		re, err := regexp.Compile(def.Trigger.Pattern)
		if err != nil {
			r.logger.Warn("invalid skill trigger pattern",
				"skill", def.Name, "pattern", def.Trigger.Pattern, "err", err)
		} else {
			r.compiledRegex[def.Name] = re
		}
	}

	for i, s := range r.skills {
		if s.Name == def.Name {
			r.skills[i] = def
			r.logger.Info("skill updated", "name", def.Name)
			return nil
		}
	}
	r.skills = append(r.skills, def)
	r.logger.Info("skill registered", "name", def.Name)
	return nil
}

// Get returns a skill by exact name.
func (r *Registry) Get(name string) (*domain.SkillDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.skills {
		if r.skills[i].Name == name {
			def := r.skills[i]
			return &def, true
		}
	}
	return nil, false
}

// Match finds the first skill triggered by input, or nil.
func (r *Registry) Match(input string) *domain.SkillDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := strings.ToLower(input)
	for i := range r.skills {
		def := &r.skills[i]
		for _, kw := range r.lowerKeywords[def.Name] {
			if kw != "" && strings.Contains(lowered, kw) {
				return def
			}
		}
		if re, ok := r.compiledRegex[def.Name]; ok && re.MatchString(input) {
			return def
		}
	}
	return nil
}

// List returns a copy of all registered skills.
func (r *Registry) List() []domain.SkillDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SkillDefinition, len(r.skills))
	copy(out, r.skills)
	return out
}

// RegisterBuiltins loads the built-in skills.
func (r *Registry) RegisterBuiltins() {
	builtins := []domain.SkillDefinition{
		{
			Name:        "research",
			Description: "Research a topic: web search followed by a summarized answer",
			BuiltIn:     true,
			Trigger: domain.SkillTrigger{
				Keywords: []string{"research", "look up", "find information about"},
			},
			Steps: []domain.SkillStep{
				{Action: "tool", Tool: "web_search"},
				{Action: "llm", Prompt: "Summarize the search results into a clear, comprehensive answer."},
			},
		},
		{
			Name:        "system_health",
			Description: "Report system health: CPU, memory, disk",
			BuiltIn:     true,
			Trigger: domain.SkillTrigger{
				Keywords: []string{"system health", "health check", "system status"},
			},
			Steps: []domain.SkillStep{
				{Action: "tool", Tool: "system_info"},
			},
		},
	}
	for _, def := range builtins {
		_ = r.Register(def)
	}
}
