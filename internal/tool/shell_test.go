package tool

import (
	"context"
	"strings"
	"testing"
)

func TestShellTool_Echo(t *testing.T) {
	s := NewShellTool(ShellConfig{WorkingDir: t.TempDir()})
	out, err := s.Execute(context.Background(), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("expected 'hello', got %q", out)
	}
}

func TestShellTool_MissingCommand(t *testing.T) {
	s := NewShellTool(ShellConfig{})
	if _, err := s.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected missing-argument error")
	}
}

func TestShellTool_OutputTruncated(t *testing.T) {
	s := NewShellTool(ShellConfig{WorkingDir: t.TempDir(), MaxOutputBytes: 10})
	out, err := s.Execute(context.Background(), map[string]any{"command": "echo 0123456789abcdef"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "truncated") {
		t.Fatalf("expected truncation marker, got %q", out)
	}
}

func TestShellTool_NonZeroExit(t *testing.T) {
	s := NewShellTool(ShellConfig{WorkingDir: t.TempDir()})
	if _, err := s.Execute(context.Background(), map[string]any{"command": "exit 3"}); err == nil {
		t.Fatal("expected exit error")
	}
}
