package skill

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nanoagent/internal/domain"
	"nanoagent/internal/gateway"
	"nanoagent/internal/tool"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_MatchKeyword(t *testing.T) {
	r := NewRegistry(testLogger())
	err := r.Register(domain.SkillDefinition{
		Name:    "weather",
		Trigger: domain.SkillTrigger{Keywords: []string{"weather", "forecast"}},
		Steps:   []domain.SkillStep{{Action: "tool", Tool: "web_search"}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if def := r.Match("What's the WEATHER like today?"); def == nil || def.Name != "weather" {
		t.Fatalf("expected weather skill, got %+v", def)
	}
	if def := r.Match("tell me a joke"); def != nil {
		t.Fatalf("expected no match, got %q", def.Name)
	}
}

func TestRegistry_MatchPattern(t *testing.T) {
	r := NewRegistry(testLogger())
	err := r.Register(domain.SkillDefinition{
		Name:    "ticket",
		Trigger: domain.SkillTrigger{Pattern: `(?i)ticket #\d+`},
		Steps:   []domain.SkillStep{{Action: "tool", Tool: "web_search"}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if def := r.Match("please check Ticket #4521 for me"); def == nil || def.Name != "ticket" {
		t.Fatalf("expected ticket skill, got %+v", def)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(testLogger())
	first := domain.SkillDefinition{
		Name:    "greet",
		Trigger: domain.SkillTrigger{Keywords: []string{"hello"}},
		Steps:   []domain.SkillStep{{Action: "llm", Prompt: "v1"}},
	}
	second := first
	second.Steps = []domain.SkillStep{{Action: "llm", Prompt: "v2"}}

	_ = r.Register(first)
	_ = r.Register(second)

	if got := len(r.List()); got != 1 {
		t.Fatalf("expected 1 skill after replace, got %d", got)
	}
	def, ok := r.Get("greet")
	if !ok || def.Steps[0].Prompt != "v2" {
		t.Fatalf("expected replaced definition, got %+v", def)
	}
}

func TestRegistry_InvalidPatternStillRegisters(t *testing.T) {
	r := NewRegistry(testLogger())
	err := r.Register(domain.SkillDefinition{
		Name:    "broken",
		Trigger: domain.SkillTrigger{Pattern: `([unclosed`, Keywords: []string{"broken"}},
		Steps:   []domain.SkillStep{{Action: "llm", Prompt: "p"}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// keyword path still works even though the pattern did not compile
	if def := r.Match("something broken here"); def == nil {
		t.Fatal("expected keyword match despite bad pattern")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()

	good := `name: deploy_check
description: Check deployment status
trigger:
  keywords: ["deploy status"]
steps:
  - action: tool
    tool: shell
    args:
      command: "kubectl get pods"
  - action: llm
    prompt: "Summarize the pod status."
`
	bad := `name: ""
steps: []
`
	if err := os.WriteFile(filepath.Join(dir, "deploy.yaml"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(testLogger())
	n, err := r.LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 loaded skill, got %d", n)
	}
	def, ok := r.Get("deploy_check")
	if !ok {
		t.Fatal("deploy_check not registered")
	}
	if len(def.Steps) != 2 || def.Steps[0].Args["command"] != "kubectl get pods" {
		t.Fatalf("unexpected steps: %+v", def.Steps)
	}
}

func TestLoadFromDirectory_Missing(t *testing.T) {
	r := NewRegistry(testLogger())
	n, err := r.LoadFromDirectory(filepath.Join(t.TempDir(), "nope"))
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil) for missing dir, got (%d, %v)", n, err)
	}
}

type stubRunner struct {
	calls []string
	args  []map[string]any
	out   string
	err   error
}

func (s *stubRunner) Execute(_ context.Context, name string, args map[string]any) (string, error) {
	s.calls = append(s.calls, name)
	s.args = append(s.args, args)
	return s.out, s.err
}

type stubProvider struct {
	reply string
	last  domain.ChatRequest
}

func (s *stubProvider) Name() string         { return "stub" }
func (s *stubProvider) DefaultModel() string { return "stub-model" }
func (s *stubProvider) Healthy(ctx context.Context) error {
	return nil
}
func (s *stubProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	s.last = req
	return &domain.ChatResponse{Content: s.reply}, nil
}

func TestExecutor_ToolThenLLM(t *testing.T) {
	runner := &stubRunner{out: "3 results found"}
	prov := &stubProvider{reply: "summary of results"}
	gw := gateway.New(gateway.Config{Logger: testLogger()})
	gw.Register("stub", prov, nil, 0)

	ex := NewExecutor(runner, gw, testLogger())
	def := &domain.SkillDefinition{
		Name: "research",
		Steps: []domain.SkillStep{
			{Action: "tool", Tool: "web_search"},
			{Action: "llm", Prompt: "Summarize the search results."},
		},
	}
	out, err := ex.Execute(context.Background(), def, "golang generics")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "summary of results" {
		t.Fatalf("expected llm output, got %q", out)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "web_search" {
		t.Fatalf("unexpected tool calls: %v", runner.calls)
	}
	// the input fills web_search's required argument
	if runner.args[0]["query"] != "golang generics" {
		t.Fatalf("input not promoted to query: %v", runner.args[0])
	}
	prompt := prov.last.Messages[0].Content
	if !strings.Contains(prompt, "3 results found") || !strings.Contains(prompt, "golang generics") {
		t.Fatalf("llm prompt missing context: %q", prompt)
	}
}

func TestExecutor_ToolStepAgainstRealRegistry(t *testing.T) {
	tools := tool.NewRegistry(testLogger())
	tools.Register(tool.NewShellTool(tool.ShellConfig{WorkingDir: t.TempDir()}))

	ex := NewExecutor(tools, gateway.New(gateway.Config{Logger: testLogger()}), testLogger())
	def := &domain.SkillDefinition{
		Name:  "runner",
		Steps: []domain.SkillStep{{Action: "tool", Tool: "shell"}},
	}
	out, err := ex.Execute(context.Background(), def, "echo hello")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("expected shell output, got %q", out)
	}
}

func TestExecutor_UnknownAction(t *testing.T) {
	ex := NewExecutor(&stubRunner{}, gateway.New(gateway.Config{Logger: testLogger()}), testLogger())
	def := &domain.SkillDefinition{
		Name:  "odd",
		Steps: []domain.SkillStep{{Action: "teleport"}},
	}
	if _, err := ex.Execute(context.Background(), def, "x"); err == nil {
		t.Fatal("expected error for unknown step action")
	}
}
