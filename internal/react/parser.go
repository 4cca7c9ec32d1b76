// Package react parses raw model output into structured think/act steps and
// maps action names onto the live tool catalogue.
package react

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoResult is returned when no parsing stage yields a schema-conformant
// step. It is a protocol violation, not a crash: callers feed it back to the
// model as an error observation.
var ErrNoResult = errors.New("react: no parseable step in model output")

// Step is one round of the think/act protocol: a thought, a normalized
// action name, and the action's input (string, object, or nil).
type Step struct {
	Thought     string
	Action      string
	ActionInput any
}

// Parse extracts a Step from raw provider text. Stages, in order:
//  1. the whole trimmed text as JSON
//  2. the contents of a fenced code block (with or without a language tag)
//  3. the first balanced {...} span
//
// The action name of the returned step is already normalized.
func Parse(raw string) (*Step, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrNoResult
	}

	for _, candidate := range []string{trimmed, fencedBlock(trimmed), balancedSpan(trimmed)} {
		if candidate == "" {
			continue
		}
		if step, ok := tryStep(candidate); ok {
			step.Action = NormalizeAction(step.Action)
			return step, nil
		}
	}
	return nil, ErrNoResult
}

// tryStep parses text as a step object and validates the schema: thought and
// action must be strings, action non-empty, action_input a string, object,
// or null. Invalid escape sequences from sloppy models get one repair pass.
func tryStep(text string) (*Step, bool) {
	var probe struct {
		Thought     *string         `json:"thought"`
		Action      *string         `json:"action"`
		ActionInput json.RawMessage `json:"action_input"`
	}
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		text = sanitizeEscapes(text)
		if err := json.Unmarshal([]byte(text), &probe); err != nil {
			return nil, false
		}
	}
	if probe.Thought == nil || probe.Action == nil || strings.TrimSpace(*probe.Action) == "" {
		return nil, false
	}

	input, ok := decodeInput(probe.ActionInput)
	if !ok {
		return nil, false
	}
	return &Step{
		Thought:     *probe.Thought,
		Action:      strings.TrimSpace(*probe.Action),
		ActionInput: input,
	}, true
}

// decodeInput accepts string, object, or null action inputs; anything else
// fails the schema.
func decodeInput(raw json.RawMessage) (any, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		return s, true
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, false
		}
		return obj, true
	}
	return nil, false
}

// fencedBlock returns the contents of the first ``` fence, stripping an
// optional language tag on the opening line. Empty when no complete fence
// exists.
func fencedBlock(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return ""
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Whatever precedes the first newline is the language tag.
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// balancedSpan locates the first syntactically balanced {...} span,
// honouring strings and escapes. Empty when none exists.
func balancedSpan(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeEscapes drops backslashes that start invalid JSON escape
// sequences (e.g. \% produced by some models) while keeping valid ones.
func sanitizeEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inStr := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && (i == 0 || s[i-1] != '\\') {
			inStr = !inStr
			buf.WriteByte(ch)
			continue
		}
		if inStr && ch == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch)
			default:
				continue
			}
		} else {
			buf.WriteByte(ch)
		}
	}
	return buf.String()
}
