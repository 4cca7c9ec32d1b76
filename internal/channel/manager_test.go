package channel

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"nanoagent/internal/bus"
	"nanoagent/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChannel struct {
	name string

	mu      sync.Mutex
	sent    []string
	started bool
	stopped bool
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Start(ctx context.Context, _ domain.MessageBus) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *fakeChannel) Stop() error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Send(_ context.Context, chatID, content string) error {
	f.mu.Lock()
	f.sent = append(f.sent, chatID+"|"+content)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) sentCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestAllowlist(t *testing.T) {
	open := NewAllowlist(nil)
	if !open.Allowed("anyone") {
		t.Fatal("empty allowlist must allow everyone")
	}

	strict := NewAllowlist([]string{"123", " 456 ", ""})
	if !strict.Allowed("123") || !strict.Allowed("456") {
		t.Fatal("listed IDs must be allowed")
	}
	if strict.Allowed("789") || strict.Allowed("") {
		t.Fatal("unlisted IDs must be rejected")
	}
}

func TestManager_RoutesOutboundByChannel(t *testing.T) {
	telegram := &fakeChannel{name: "telegram"}
	cli := &fakeChannel{name: "cli"}

	m := NewManager(testLogger())
	m.Register(telegram)
	m.Register(cli)

	b := bus.New(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, b) }()

	if err := b.PublishOutbound(domain.OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi tg"}); err != nil {
		t.Fatal(err)
	}
	if err := b.PublishOutbound(domain.OutboundMessage{Channel: "cli", ChatID: "local", Content: "hi cli"}); err != nil {
		t.Fatal(err)
	}
	// unknown channel is logged and skipped, not fatal
	if err := b.PublishOutbound(domain.OutboundMessage{Channel: "carrier-pigeon", ChatID: "x", Content: "coo"}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		return len(telegram.sentCopy()) == 1 && len(cli.sentCopy()) == 1
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("manager run: %v", err)
	}

	if got := telegram.sentCopy(); got[0] != "42|hi tg" {
		t.Fatalf("telegram got %q", got[0])
	}
	if got := cli.sentCopy(); got[0] != "local|hi cli" {
		t.Fatalf("cli got %q", got[0])
	}
	if !telegram.stopped || !cli.stopped {
		t.Fatal("channels not stopped on shutdown")
	}
}

func TestManager_StopsOnBusClose(t *testing.T) {
	m := NewManager(testLogger())
	m.Register(&fakeChannel{name: "cli"})

	b := bus.New(testLogger())
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), b) }()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop after bus close")
	}
}

func TestCLI_PublishesLines(t *testing.T) {
	in := strings.NewReader("hello agent\n\n/quit\n")
	var out strings.Builder
	cli := NewCLI(CLIConfig{In: in, Out: &out, Logger: testLogger()})

	b := bus.New(testLogger())
	if err := cli.Start(context.Background(), b); err != nil {
		t.Fatalf("cli start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if msg.Channel != "cli" || msg.ChatID != "local" || msg.Content != "hello agent" {
		t.Fatalf("unexpected inbound: %+v", msg)
	}
	// blank line produced nothing, /quit ended the loop
	if b.InboundLen() != 0 {
		t.Fatalf("expected single inbound message, %d left", b.InboundLen())
	}
}

func TestCLI_SendWrites(t *testing.T) {
	var out strings.Builder
	cli := NewCLI(CLIConfig{In: strings.NewReader(""), Out: &out, Logger: testLogger()})
	if err := cli.Send(context.Background(), "local", "the answer"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "the answer") {
		t.Fatalf("output missing reply: %q", out.String())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
