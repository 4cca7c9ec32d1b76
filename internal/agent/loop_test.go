package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"nanoagent/internal/bus"
	"nanoagent/internal/domain"
	"nanoagent/internal/gateway"
	"nanoagent/internal/hook"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedProvider returns canned replies in order, then repeats the last.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	calls   int
	seen    []domain.ChatRequest
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "scripted-1" }
func (p *scriptedProvider) Healthy(ctx context.Context) error {
	return nil
}
func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, req)
	i := p.calls
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	p.calls++
	return &domain.ChatResponse{Content: p.replies[i]}, nil
}

// fakeCatalogue records executions and returns fixed results per tool.
type fakeCatalogue struct {
	mu      sync.Mutex
	results map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		results: map[string]string{},
		errs:    map[string]error{},
	}
}

func (c *fakeCatalogue) Resolve(name string) (*domain.ToolDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[name]; ok {
		return &domain.ToolDescriptor{Name: name}, true
	}
	if _, ok := c.errs[name]; ok {
		return &domain.ToolDescriptor{Name: name}, true
	}
	return nil, false
}

func (c *fakeCatalogue) Execute(_ context.Context, name string, input any, _ domain.InboundMessage) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	if err, ok := c.errs[name]; ok {
		return "", err
	}
	return c.results[name], nil
}

func (c *fakeCatalogue) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "list_dir", Description: "List directory contents"}}
}

func (c *fakeCatalogue) callNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func step(thought, action string, input any) string {
	b, _ := json.Marshal(map[string]any{
		"thought":      thought,
		"action":       action,
		"action_input": input,
	})
	return string(b)
}

func newTestLoop(t *testing.T, prov *scriptedProvider, cat domain.Catalogue, mutate func(*Config)) (*Loop, *bus.InMemoryBus) {
	t.Helper()
	b := bus.New(testLogger())
	gw := gateway.New(gateway.Config{Logger: testLogger()})
	gw.Register("scripted", prov, nil, 0)

	cfg := Config{
		Bus:       b,
		Gateway:   gw,
		Catalogue: cat,
		Hooks:     hook.NewPipeline(testLogger()),
		Logger:    testLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	loop, err := New(cfg)
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	return loop, b
}

// runOne publishes msg, runs the loop until one outbound message arrives,
// then shuts the loop down.
func runOne(t *testing.T, loop *Loop, b *bus.InMemoryBus, msg domain.InboundMessage) domain.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	if err := b.PublishInbound(msg); err != nil {
		t.Fatalf("publish inbound: %v", err)
	}
	out, err := b.ConsumeOutbound(ctx)
	if err != nil {
		t.Fatalf("consume outbound: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("loop run: %v", err)
	}
	return out
}

func TestLoop_ToolThenFinish(t *testing.T) {
	cat := newFakeCatalogue()
	cat.results["list_dir"] = "a.txt\nb.txt"

	prov := &scriptedProvider{replies: []string{
		step("I should list the files", "ls", "."),
		step("I have the listing", "finish", "Files: a.txt, b.txt"),
	}}

	loop, b := newTestLoop(t, prov, cat, nil)
	out := runOne(t, loop, b, domain.InboundMessage{
		Channel: "cli", ChatID: "local", Content: "list my files",
	})

	if out.Content != "Files: a.txt, b.txt" {
		t.Fatalf("unexpected reply: %q", out.Content)
	}
	if out.Channel != "cli" || out.ChatID != "local" {
		t.Fatalf("reply misrouted: %+v", out)
	}
	// ls alias resolved onto the list_dir tool, exactly once
	if calls := cat.callNames(); len(calls) != 1 || calls[0] != "list_dir" {
		t.Fatalf("unexpected tool calls: %v", calls)
	}
	if b.OutboundLen() != 0 {
		t.Fatalf("expected exactly one outbound message, %d left", b.OutboundLen())
	}

	// second model call carries the observation from the first
	if len(prov.seen) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(prov.seen))
	}
	last := prov.seen[1].Messages
	obs := last[len(last)-1]
	if obs.Role != "user" || !strings.Contains(obs.Content, "a.txt") {
		t.Fatalf("observation missing from second call: %+v", obs)
	}
}

func TestLoop_UnparseableReplyRetried(t *testing.T) {
	cat := newFakeCatalogue()
	prov := &scriptedProvider{replies: []string{
		"I think the answer is 42, but here is some prose instead of JSON.",
		step("retrying properly", "finish", "The answer is 42."),
	}}

	loop, b := newTestLoop(t, prov, cat, nil)
	out := runOne(t, loop, b, domain.InboundMessage{Channel: "cli", ChatID: "x", Content: "hi"})

	if out.Content != "The answer is 42." {
		t.Fatalf("unexpected reply: %q", out.Content)
	}
	// the retry prompt flags the protocol error
	second := prov.seen[1].Messages
	feedback := second[len(second)-1]
	if !strings.Contains(feedback.Content, `"error":true`) {
		t.Fatalf("expected error observation, got %q", feedback.Content)
	}
}

func TestLoop_UnknownActionBecomesObservation(t *testing.T) {
	cat := newFakeCatalogue()
	prov := &scriptedProvider{replies: []string{
		step("let me teleport", "teleport", nil),
		step("ok, finishing", "finish", "done without teleporting"),
	}}

	loop, b := newTestLoop(t, prov, cat, nil)
	out := runOne(t, loop, b, domain.InboundMessage{Channel: "cli", ChatID: "x", Content: "go"})

	if out.Content != "done without teleporting" {
		t.Fatalf("unexpected reply: %q", out.Content)
	}
	if calls := cat.callNames(); len(calls) != 0 {
		t.Fatalf("no tool should have run, got %v", calls)
	}
}

func TestLoop_ToolErrorBecomesObservation(t *testing.T) {
	cat := newFakeCatalogue()
	cat.errs["list_dir"] = errors.New("permission denied")
	prov := &scriptedProvider{replies: []string{
		step("listing", "list_dir", "/root/secret"),
		step("cannot read it", "finish", "I don't have access to that directory."),
	}}

	loop, b := newTestLoop(t, prov, cat, nil)
	out := runOne(t, loop, b, domain.InboundMessage{Channel: "cli", ChatID: "x", Content: "list /root/secret"})

	if !strings.Contains(out.Content, "access") {
		t.Fatalf("unexpected reply: %q", out.Content)
	}
	second := prov.seen[1].Messages
	obs := second[len(second)-1]
	if !strings.Contains(obs.Content, "permission denied") || !strings.Contains(obs.Content, `"error":true`) {
		t.Fatalf("expected error observation, got %q", obs.Content)
	}
}

func TestLoop_RoundLimit(t *testing.T) {
	cat := newFakeCatalogue()
	cat.results["list_dir"] = "loop.txt"
	// never finishes
	prov := &scriptedProvider{replies: []string{step("again", "list_dir", ".")}}

	loop, b := newTestLoop(t, prov, cat, func(cfg *Config) { cfg.MaxRounds = 3 })
	out := runOne(t, loop, b, domain.InboundMessage{Channel: "cli", ChatID: "x", Content: "spin"})

	if out.Content != exhaustedReply {
		t.Fatalf("expected exhaustion reply, got %q", out.Content)
	}
	if calls := cat.callNames(); len(calls) != 3 {
		t.Fatalf("expected 3 tool calls, got %d", len(calls))
	}
}

func TestLoop_HooksModifyContentAndReply(t *testing.T) {
	cat := newFakeCatalogue()
	prov := &scriptedProvider{replies: []string{step("done", "finish", "raw reply")}}

	loop, b := newTestLoop(t, prov, cat, func(cfg *Config) {
		cfg.Hooks.Register(hook.PointMessageReceived, func(_ context.Context, hctx hook.Context) (hook.Context, error) {
			hctx["content"] = "rewritten: " + hctx["content"].(string)
			return hctx, nil
		}, hook.DefaultPriority)
		cfg.Hooks.Register(hook.PointMessageSending, func(_ context.Context, hctx hook.Context) (hook.Context, error) {
			hctx["content"] = hctx["content"].(string) + " [filtered]"
			return hctx, nil
		}, hook.DefaultPriority)
	})

	out := runOne(t, loop, b, domain.InboundMessage{Channel: "cli", ChatID: "x", Content: "original"})

	if out.Content != "raw reply [filtered]" {
		t.Fatalf("sending hook not applied: %q", out.Content)
	}
	user := prov.seen[0].Messages
	if user[len(user)-1].Content != "rewritten: original" {
		t.Fatalf("received hook not applied: %q", user[len(user)-1].Content)
	}
}

func TestLoop_ConversationSerialization(t *testing.T) {
	cat := newFakeCatalogue()

	var mu sync.Mutex
	active := 0
	maxActive := 0
	prov := &trackingProvider{onChat: func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}}

	b := bus.New(testLogger())
	gw := gateway.New(gateway.Config{Logger: testLogger()})
	gw.Register("tracking", prov, nil, 0)
	loop, err := New(Config{
		Bus:       b,
		Gateway:   gw,
		Catalogue: cat,
		Hooks:     hook.NewPipeline(testLogger()),
		Logger:    testLogger(),
		Workers:   8,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	const turns = 4
	for i := 0; i < turns; i++ {
		msg := domain.InboundMessage{Channel: "cli", ChatID: "same", Content: fmt.Sprintf("msg %d", i)}
		if err := b.PublishInbound(msg); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < turns; i++ {
		if _, err := b.ConsumeOutbound(ctx); err != nil {
			t.Fatalf("outbound %d: %v", i, err)
		}
	}
	cancel()
	<-done

	if maxActive != 1 {
		t.Fatalf("turns in one conversation overlapped: max %d concurrent model calls", maxActive)
	}
}

func TestLoop_ConversationFIFO(t *testing.T) {
	cat := newFakeCatalogue()
	b := bus.New(testLogger())
	gw := gateway.New(gateway.Config{Logger: testLogger()})
	gw.Register("echo", &echoProvider{}, nil, 0)
	loop, err := New(Config{
		Bus:       b,
		Gateway:   gw,
		Catalogue: cat,
		Hooks:     hook.NewPipeline(testLogger()),
		Logger:    testLogger(),
		Workers:   8,
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	const turns = 8
	for i := 0; i < turns; i++ {
		msg := domain.InboundMessage{Channel: "cli", ChatID: "same", Content: fmt.Sprintf("%02d", i)}
		if err := b.PublishInbound(msg); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	for i := 0; i < turns; i++ {
		out, err := b.ConsumeOutbound(ctx)
		if err != nil {
			t.Fatalf("outbound %d: %v", i, err)
		}
		got = append(got, out.Content)
	}
	cancel()
	<-done

	for i, content := range got {
		if want := fmt.Sprintf("%02d", i); content != want {
			t.Fatalf("replies out of arrival order: got %v", got)
		}
	}
}

// echoProvider finishes immediately, echoing the last user message.
type echoProvider struct{}

func (p *echoProvider) Name() string                      { return "echo" }
func (p *echoProvider) DefaultModel() string              { return "echo-1" }
func (p *echoProvider) Healthy(ctx context.Context) error { return nil }
func (p *echoProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	last := req.Messages[len(req.Messages)-1]
	return &domain.ChatResponse{Content: step("echo", "finish", last.Content)}, nil
}

// trackingProvider calls onChat per request and always finishes immediately.
type trackingProvider struct {
	onChat func()
}

func (p *trackingProvider) Name() string         { return "tracking" }
func (p *trackingProvider) DefaultModel() string { return "tracking-1" }
func (p *trackingProvider) Healthy(ctx context.Context) error {
	return nil
}
func (p *trackingProvider) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	if p.onChat != nil {
		p.onChat()
	}
	return &domain.ChatResponse{Content: step("done", "finish", "ok")}, nil
}

func TestFinalAnswer(t *testing.T) {
	if got := finalAnswer("plain text"); got != "plain text" {
		t.Fatalf("string input: %q", got)
	}
	if got := finalAnswer(map[string]any{"answer": "from object"}); got != "from object" {
		t.Fatalf("object input: %q", got)
	}
	if got := finalAnswer(nil); got != "Done." {
		t.Fatalf("nil input: %q", got)
	}
}
