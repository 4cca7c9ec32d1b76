package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nanoagent/internal/domain"
)

// buildSystemPrompt assembles the instruction block: persona, the JSON
// think/act format, and the live tool definitions.
func buildSystemPrompt(persona string, defs []domain.ToolDefinition) string {
	var b strings.Builder

	if persona == "" {
		persona = "You are a capable personal assistant running on the user's machine."
	}
	b.WriteString(persona)
	b.WriteString("\n\n")

	b.WriteString("Work in steps. Every reply must be a single JSON object with exactly these fields:\n")
	b.WriteString("{\n")
	b.WriteString(`  "thought": "your reasoning about what to do next",` + "\n")
	b.WriteString(`  "action": "one of the tool names below, or \"finish\"",` + "\n")
	b.WriteString(`  "action_input": "the tool arguments as an object, or the final answer text when action is finish"` + "\n")
	b.WriteString("}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Output only the JSON object, no prose before or after.\n")
	b.WriteString("- Use exactly one action per reply.\n")
	b.WriteString("- After each action you receive an observation with the result; use it for the next step.\n")
	b.WriteString("- When you have the answer, use action \"finish\" with the complete answer as action_input.\n\n")

	if len(defs) > 0 {
		b.WriteString("Available tools:\n")
		for _, def := range defs {
			fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
			if len(def.Parameters) > 0 {
				if schema, err := json.Marshal(def.Parameters); err == nil {
					fmt.Fprintf(&b, "  parameters: %s\n", schema)
				}
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Current time: %s\n", time.Now().Format(time.RFC1123))
	return b.String()
}

// observationContent renders a tool result as the observation message fed
// back to the model.
func observationContent(action, result string) string {
	payload := map[string]any{
		"observation": result,
		"action":      action,
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// errorObservation renders a failure as an observation the model can react
// to, instead of aborting the turn.
func errorObservation(action string, err error) string {
	payload := map[string]any{
		"error":       true,
		"action":      action,
		"observation": err.Error(),
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
