package react

import (
	"strings"

	"nanoagent/internal/domain"
)

// ActionFinish terminates the agent loop; it maps to no tool and its input
// is the final answer.
const ActionFinish = "finish"

// actionAliases folds common model-generated variations onto canonical
// action names. Canonical names never appear as keys, so normalization is
// idempotent. Unrecognized names pass through unchanged: dynamically
// registered tool and skill names remain valid actions.
var actionAliases = map[string]string{
	"exec":         "shell_exec",
	"run":          "shell_exec",
	"bash":         "shell_exec",
	"sh":           "shell_exec",
	"shell":        "shell_exec",
	"command":      "shell_exec",
	"done":         ActionFinish,
	"answer":       ActionFinish,
	"final":        ActionFinish,
	"final_answer": ActionFinish,
	"respond":      ActionFinish,
	"ls":           "list_dir",
	"dir":          "list_dir",
	"list-dir":     "list_dir",
	"listdir":      "list_dir",
	"cat":          "read_file",
	"read":         "read_file",
	"read-file":    "read_file",
	"readfile":     "read_file",
	"write":        "write_file",
	"write-file":   "write_file",
	"writefile":    "write_file",
	"fetch":        "web_fetch",
	"curl":         "web_fetch",
	"web-fetch":    "web_fetch",
	"webfetch":     "web_fetch",
	"search":       "web_search",
	"web-search":   "web_search",
	"websearch":    "web_search",
	"sysinfo":      "system_info",
	"system-info":  "system_info",
	"systeminfo":   "system_info",
	"time":         "current_time",
	"now":          "current_time",
	"date":         "current_time",
	"capture":      "screenshot",
	"screen":       "screenshot",
}

// NormalizeAction lower-cases the action name and resolves it through the
// alias table. Idempotent: normalizing a normalized name is a no-op.
func NormalizeAction(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := actionAliases[lowered]; ok {
		return canonical
	}
	return lowered
}

// ToolToAction maps built-in tool names to their canonical action names.
// ActionToTool is its exact inverse; both directions stay consistent by
// construction.
var ToolToAction = map[string]string{
	"shell":        "shell_exec",
	"read_file":    "read_file",
	"write_file":   "write_file",
	"list_dir":     "list_dir",
	"web_fetch":    "web_fetch",
	"web_search":   "web_search",
	"system_info":  "system_info",
	"current_time": "current_time",
	"screenshot":   "screenshot",
}

var ActionToTool = func() map[string]string {
	inv := make(map[string]string, len(ToolToAction))
	for tool, action := range ToolToAction {
		inv[action] = tool
	}
	return inv
}()

// Resolution describes what a normalized action resolves to.
type Resolution struct {
	ToolName string
	Terminal bool // finish: end the turn, no tool to run
}

// Resolve maps a normalized action onto the catalogue. Built-in actions go
// through the static table; anything else is matched against the catalogue
// by name, so registered skills and dynamic tools resolve directly. A false
// return means unresolved — the caller turns it into an error observation.
func Resolve(action string, cat domain.Catalogue) (Resolution, bool) {
	if action == ActionFinish {
		return Resolution{Terminal: true}, true
	}
	if tool, ok := ActionToTool[action]; ok {
		if _, found := cat.Resolve(tool); found {
			return Resolution{ToolName: tool}, true
		}
		return Resolution{}, false
	}
	if _, found := cat.Resolve(action); found {
		return Resolution{ToolName: action}, true
	}
	return Resolution{}, false
}
