package tool

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultShellTimeout   = 30
	defaultMaxOutputBytes = 65536
)

// ShellTool runs a command through sh -c in the workspace directory.
type ShellTool struct {
	workingDir     string
	timeoutSeconds int
	maxOutputBytes int
}

type ShellConfig struct {
	WorkingDir     string
	TimeoutSeconds int
	MaxOutputBytes int
}

func NewShellTool(cfg ShellConfig) *ShellTool {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultShellTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = defaultMaxOutputBytes
	}
	return &ShellTool{
		workingDir:     cfg.WorkingDir,
		timeoutSeconds: cfg.TimeoutSeconds,
		maxOutputBytes: cfg.MaxOutputBytes,
	}
}

func (s *ShellTool) Name() string { return "shell" }

func (s *ShellTool) Description() string {
	return "Execute a shell command and return stdout and stderr. Use for terminal commands, scripts, or any CLI tool."
}

func (s *ShellTool) Parameters() map[string]any {
	return Parameters(
		map[string]Param{
			"command": {Type: "string", Description: "Shell command to execute (e.g. 'ls -la', 'git status')"},
		},
		[]string{"command"},
	)
}

func (s *ShellTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command := strings.TrimSpace(ArgString(args, "command"))
	if command == "" {
		return "", fmt.Errorf("missing argument: command")
	}

	dir := strings.TrimSpace(ArgString(args, "workdir"))
	if dir == "" {
		dir = s.workingDir
	}
	if dir == "" {
		dir = "."
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSeconds)*time.Second)
	defer cancel()

	// sh -c for reliable handling of pipes, quoting, and redirects.
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = absDir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("command timed out or cancelled")
		}
		return string(output), fmt.Errorf("exit: %w", err)
	}

	result := string(output)
	if len(result) > s.maxOutputBytes {
		result = result[:s.maxOutputBytes] + "\n... (output truncated)"
	}
	return result, nil
}
