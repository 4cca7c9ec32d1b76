package agent

import (
	"context"
	"strings"
	"testing"

	"nanoagent/internal/domain"
	"nanoagent/internal/skill"
	"nanoagent/internal/tool"
)

type echoTool struct {
	name string
	last map[string]any
}

func (e *echoTool) Name() string               { return e.name }
func (e *echoTool) Description() string        { return "echo" }
func (e *echoTool) Parameters() map[string]any { return nil }
func (e *echoTool) Execute(_ context.Context, args map[string]any) (string, error) {
	e.last = args
	return "ok", nil
}

func TestCatalogue_StringInputPromotedToPrimaryArg(t *testing.T) {
	sh := &echoTool{name: "shell"}
	reg := tool.NewRegistry(testLogger())
	reg.Register(sh)
	cat := NewCatalogue(reg, nil, nil, testLogger())

	_, err := cat.Execute(context.Background(), "shell", "ls -la", domain.InboundMessage{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sh.last["command"] != "ls -la" {
		t.Fatalf("string input not promoted: %+v", sh.last)
	}
}

func TestCatalogue_ObjectInputPassedThrough(t *testing.T) {
	wf := &echoTool{name: "write_file"}
	reg := tool.NewRegistry(testLogger())
	reg.Register(wf)
	cat := NewCatalogue(reg, nil, nil, testLogger())

	input := map[string]any{"path": "/tmp/a.txt", "content": "hello"}
	if _, err := cat.Execute(context.Background(), "write_file", input, domain.InboundMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if wf.last["path"] != "/tmp/a.txt" || wf.last["content"] != "hello" {
		t.Fatalf("object input mangled: %+v", wf.last)
	}
}

func TestCatalogue_CurrentDirInjected(t *testing.T) {
	sh := &echoTool{name: "shell"}
	reg := tool.NewRegistry(testLogger())
	reg.Register(sh)
	cat := NewCatalogue(reg, nil, nil, testLogger())

	msg := domain.InboundMessage{CurrentDir: "/home/user/project"}
	if _, err := cat.Execute(context.Background(), "shell", "git status", msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sh.last["workdir"] != "/home/user/project" {
		t.Fatalf("workdir not injected: %+v", sh.last)
	}
}

func TestCatalogue_SkillResolvesAndRuns(t *testing.T) {
	reg := tool.NewRegistry(testLogger())
	search := &echoTool{name: "web_search"}
	reg.Register(search)

	skills := skill.NewRegistry(testLogger())
	err := skills.Register(domain.SkillDefinition{
		Name:        "lookup",
		Description: "Search and return raw results",
		Steps:       []domain.SkillStep{{Action: "tool", Tool: "web_search"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	executor := skill.NewExecutor(reg, nil, testLogger())
	cat := NewCatalogue(reg, skills, executor, testLogger())

	if _, ok := cat.Resolve("lookup"); !ok {
		t.Fatal("skill not resolvable as an action")
	}
	out, err := cat.Execute(context.Background(), "lookup", "golang news", domain.InboundMessage{Content: "fallback"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "ok" {
		t.Fatalf("unexpected skill output: %q", out)
	}
	if search.last["input"] != "golang news" {
		t.Fatalf("skill input not threaded: %+v", search.last)
	}
}

func TestCatalogue_UnknownAction(t *testing.T) {
	cat := NewCatalogue(tool.NewRegistry(testLogger()), nil, nil, testLogger())
	if _, ok := cat.Resolve("nope"); ok {
		t.Fatal("resolved nonexistent action")
	}
	if _, err := cat.Execute(context.Background(), "nope", nil, domain.InboundMessage{}); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	defs := []domain.ToolDefinition{
		{Name: "shell", Description: "Run a command"},
		{Name: "web_search", Description: "Search the web"},
	}
	prompt := buildSystemPrompt("", defs)

	for _, want := range []string{`"thought"`, `"action"`, `"action_input"`, "finish", "shell", "web_search"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
