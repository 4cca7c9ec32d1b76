package tool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// SysInfoTool reports host, OS, CPU, memory, and disk information.
type SysInfoTool struct{}

func NewSysInfoTool() *SysInfoTool { return &SysInfoTool{} }

func (t *SysInfoTool) Name() string { return "system_info" }
func (t *SysInfoTool) Description() string {
	return "Get system information: hostname, OS, CPU model and cores, memory, disk usage, and uptime."
}
func (t *SysInfoTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *SysInfoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	hostname, _ := os.Hostname()
	cwd, _ := os.Getwd()

	lines := []string{
		"=== System Information ===",
		"Hostname: " + hostname,
		fmt.Sprintf("OS: %s/%s", runtime.GOOS, runtime.GOARCH),
		"Working dir: " + cwd,
	}

	if ver := probe(ctx, "uname", "-sr"); ver != "" {
		lines = append(lines, "Kernel: "+ver)
	}

	lines = append(lines, "", "=== CPU ===")
	if model := cpuModel(ctx); model != "" {
		lines = append(lines, "Model: "+model)
	}
	lines = append(lines, fmt.Sprintf("Logical cores: %d", runtime.NumCPU()))

	if mem := probe(ctx, "sh", "-c", "free -h 2>/dev/null | head -2"); mem != "" {
		lines = append(lines, "", "=== Memory ===", mem)
	}
	if disk := probe(ctx, "sh", "-c", "df -h / 2>/dev/null | tail -1"); disk != "" {
		lines = append(lines, "", "=== Disk (/) ===", disk)
	}
	if up := probe(ctx, "uptime"); up != "" {
		lines = append(lines, "", "Uptime: "+up)
	}

	return strings.Join(lines, "\n"), nil
}

func cpuModel(ctx context.Context) string {
	switch runtime.GOOS {
	case "darwin":
		return probe(ctx, "sysctl", "-n", "machdep.cpu.brand_string")
	case "linux":
		return probe(ctx, "sh", "-c", "grep -m1 'model name' /proc/cpuinfo | cut -d: -f2")
	}
	return ""
}

// probe runs a short command and returns trimmed output; failures yield an
// empty string so the report degrades gracefully per platform.
func probe(ctx context.Context, name string, args ...string) string {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
