package react

import (
	"context"
	"testing"

	"nanoagent/internal/domain"
)

// stubCatalogue resolves a fixed set of names.
type stubCatalogue struct {
	names map[string]bool
}

func (s *stubCatalogue) Resolve(name string) (*domain.ToolDescriptor, bool) {
	if s.names[name] {
		return &domain.ToolDescriptor{Name: name}, true
	}
	return nil, false
}

func (s *stubCatalogue) Execute(ctx context.Context, name string, input any, msg domain.InboundMessage) (string, error) {
	return "", nil
}

func (s *stubCatalogue) Definitions() []domain.ToolDefinition { return nil }

func TestToolActionTables_BidirectionalConsistency(t *testing.T) {
	for tool, action := range ToolToAction {
		if got := ActionToTool[action]; got != tool {
			t.Fatalf("ActionToTool[%q] = %q, want %q", action, got, tool)
		}
	}
	for action, tool := range ActionToTool {
		if got := ToolToAction[tool]; got != action {
			t.Fatalf("ToolToAction[%q] = %q, want %q", tool, got, action)
		}
	}
}

func TestResolve_FinishIsTerminal(t *testing.T) {
	res, ok := Resolve(ActionFinish, &stubCatalogue{})
	if !ok || !res.Terminal {
		t.Fatalf("finish must resolve as terminal, got %+v ok=%v", res, ok)
	}
	if res.ToolName != "" {
		t.Fatalf("finish maps to no tool, got %q", res.ToolName)
	}
}

func TestResolve_BuiltinActionThroughTable(t *testing.T) {
	cat := &stubCatalogue{names: map[string]bool{"shell": true}}
	res, ok := Resolve("shell_exec", cat)
	if !ok {
		t.Fatal("expected shell_exec to resolve")
	}
	if res.ToolName != "shell" {
		t.Fatalf("expected tool 'shell', got %q", res.ToolName)
	}
}

func TestResolve_BuiltinActionMissingFromCatalogue(t *testing.T) {
	if _, ok := Resolve("shell_exec", &stubCatalogue{}); ok {
		t.Fatal("built-in action without a registered tool must be unresolved")
	}
}

func TestResolve_DynamicNameAgainstCatalogue(t *testing.T) {
	cat := &stubCatalogue{names: map[string]bool{"summarize_inbox": true}}
	res, ok := Resolve("summarize_inbox", cat)
	if !ok {
		t.Fatal("dynamically registered names must resolve by equality")
	}
	if res.ToolName != "summarize_inbox" {
		t.Fatalf("unexpected tool %q", res.ToolName)
	}
}

func TestResolve_UnknownAction(t *testing.T) {
	if _, ok := Resolve("levitate", &stubCatalogue{}); ok {
		t.Fatal("unknown action must not resolve")
	}
}
