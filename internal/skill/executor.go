package skill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nanoagent/internal/domain"
	"nanoagent/internal/gateway"
	"nanoagent/internal/tool"
)

// ToolRunner executes a named tool with arguments. The tool registry
// satisfies this.
type ToolRunner interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Executor runs a skill's steps in order, threading intermediate output.
type Executor struct {
	tools   ToolRunner
	gateway *gateway.Gateway
	logger  *slog.Logger
}

func NewExecutor(tools ToolRunner, gw *gateway.Gateway, logger *slog.Logger) *Executor {
	return &Executor{tools: tools, gateway: gw, logger: logger}
}

// Execute runs def against input. Tool steps receive the input under the
// tool's primary argument (and "input") plus any static args from the
// definition; llm steps receive the accumulated output of prior steps
// appended to their prompt. The final step's output is the skill result.
func (e *Executor) Execute(ctx context.Context, def *domain.SkillDefinition, input string) (string, error) {
	var last string
	for i, step := range def.Steps {
		var out string
		var err error
		switch step.Action {
		case "tool":
			out, err = e.runToolStep(ctx, step, input, last)
		case "llm":
			out, err = e.runLLMStep(ctx, step, input, last)
		default:
			err = fmt.Errorf("unknown step action %q", step.Action)
		}
		if err != nil {
			return "", fmt.Errorf("skill %q step %d (%s): %w", def.Name, i, step.Action, err)
		}
		e.logger.Debug("skill step done", "skill", def.Name, "step", i, "action", step.Action)
		last = out
	}
	return last, nil
}

func (e *Executor) runToolStep(ctx context.Context, step domain.SkillStep, input, prior string) (string, error) {
	args := map[string]any{"input": input}
	if key, ok := tool.PrimaryArg(step.Tool); ok {
		args[key] = input
	}
	if prior != "" {
		args["context"] = prior
	}
	// static args from the definition win
	for k, v := range step.Args {
		args[k] = v
	}
	return e.tools.Execute(ctx, step.Tool, args)
}

func (e *Executor) runLLMStep(ctx context.Context, step domain.SkillStep, input, prior string) (string, error) {
	var b strings.Builder
	b.WriteString(step.Prompt)
	b.WriteString("\n\nUser request: ")
	b.WriteString(input)
	if prior != "" {
		b.WriteString("\n\nContext from previous steps:\n")
		b.WriteString(prior)
	}

	resp, err := e.gateway.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
