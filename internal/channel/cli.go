package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"nanoagent/internal/domain"
)

// CLI is an interactive terminal front-end reading lines from stdin.
type CLI struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	cancel context.CancelFunc
}

type CLIConfig struct {
	In     io.Reader // default os.Stdin
	Out    io.Writer // default os.Stdout
	Logger *slog.Logger
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &CLI{in: cfg.In, out: cfg.Out, logger: cfg.Logger}
}

func (c *CLI) Name() string { return "cli" }

// Start reads lines until EOF, /quit, or context cancellation. Every
// non-empty line becomes an inbound message for the single "local" chat.
func (c *CLI) Start(ctx context.Context, b domain.MessageBus) error {
	ctx, c.cancel = context.WithCancel(ctx)

	fmt.Fprintln(c.out, "nanoagent ready. Type a message, /quit to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	cwd, _ := os.Getwd()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "/quit" || text == "/exit" {
				return nil
			}
			err := b.PublishInbound(domain.InboundMessage{
				Channel:    "cli",
				ChatID:     "local",
				SenderID:   "local",
				Content:    text,
				CurrentDir: cwd,
				Timestamp:  time.Now(),
			})
			if err != nil {
				return err
			}
		}
	}
}

func (c *CLI) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *CLI) Send(_ context.Context, _ string, content string) error {
	_, err := fmt.Fprintf(c.out, "\n%s\n\n> ", content)
	return err
}
