package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"nanoagent/internal/domain"
)

// LoadFromDirectory reads every .yaml/.yml file in dir and registers each as
// a skill. A missing directory is not an error. Files that fail to parse are
// skipped with a warning so one bad file does not block the rest.
func (r *Registry) LoadFromDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read skills dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := loadFile(path)
		if err != nil {
			r.logger.Warn("skipping skill file", "path", path, "err", err)
			continue
		}
		if err := r.Register(*def); err != nil {
			r.logger.Warn("skipping skill", "path", path, "err", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

func loadFile(path string) (*domain.SkillDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def domain.SkillDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("skill in %s has no name", filepath.Base(path))
	}
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("skill %q has no steps", def.Name)
	}
	for i, step := range def.Steps {
		switch step.Action {
		case "tool":
			if step.Tool == "" {
				return nil, fmt.Errorf("skill %q step %d: tool step missing tool name", def.Name, i)
			}
		case "llm":
			if step.Prompt == "" {
				return nil, fmt.Errorf("skill %q step %d: llm step missing prompt", def.Name, i)
			}
		default:
			return nil, fmt.Errorf("skill %q step %d: unknown action %q", def.Name, i, step.Action)
		}
	}
	return &def, nil
}
