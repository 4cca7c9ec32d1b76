package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const screenshotTimeout = 45 * time.Second

// ScreenshotTool renders a web page in headless Chrome and captures a PNG
// into the workspace.
type ScreenshotTool struct {
	workspace string
	enabled   bool
}

func NewScreenshotTool(workspace string, enabled bool) *ScreenshotTool {
	return &ScreenshotTool{workspace: workspace, enabled: enabled}
}

func (t *ScreenshotTool) Name() string { return "screenshot" }
func (t *ScreenshotTool) Description() string {
	return "Render a web page in a headless browser and save a full-page screenshot into the workspace. Returns the saved file path."
}
func (t *ScreenshotTool) Parameters() map[string]any {
	return Parameters(
		map[string]Param{
			"url": {Type: "string", Description: "Page URL to capture"},
		},
		[]string{"url"},
	)
}

func (t *ScreenshotTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if !t.enabled {
		return "Screenshots are disabled. Enable tools.screenshot in the config.", nil
	}
	target := strings.TrimSpace(ArgString(args, "url"))
	if target == "" {
		return "", fmt.Errorf("missing argument: url")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	ctx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Headless)...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(target),
		chromedp.Sleep(2*time.Second),
		chromedp.FullScreenshot(&buf, 85),
	)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", target, err)
	}

	name := fmt.Sprintf("screenshot-%d.png", time.Now().Unix())
	out := filepath.Join(t.workspace, name)
	if err := os.MkdirAll(t.workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	if err := os.WriteFile(out, buf, 0o644); err != nil {
		return "", fmt.Errorf("save screenshot: %w", err)
	}
	return fmt.Sprintf("Saved screenshot of %s to %s (%d bytes)", target, out, len(buf)), nil
}
