package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nanoagent/internal/bus"
	"nanoagent/internal/domain"
	"nanoagent/internal/gateway"
	"nanoagent/internal/hook"
	"nanoagent/internal/react"
)

const (
	defaultMaxRounds   = 12
	defaultWorkers     = 4
	defaultHistorySize = 20
	defaultToolTimeout = 2 * time.Minute
)

// exhaustedReply is sent when a turn hits the round bound without a finish
// action.
const exhaustedReply = "I couldn't complete this request within the step limit. Try breaking it into smaller parts."

// Config wires the loop's collaborators.
type Config struct {
	Bus       domain.MessageBus
	Gateway   *gateway.Gateway
	Catalogue domain.Catalogue
	Hooks     *hook.Pipeline
	Sessions  domain.SessionStore
	Logger    *slog.Logger

	Persona     string
	Model       string
	MaxRounds   int
	Workers     int
	HistorySize int
	ToolTimeout time.Duration
}

// Loop consumes inbound messages and runs each through the think/act cycle.
// Turns for different conversations run concurrently up to the worker bound;
// turns within one conversation run strictly one at a time, in arrival order.
type Loop struct {
	cfg   Config
	slots chan struct{}

	mu    sync.Mutex
	convs map[string]*convQueue
	wg    sync.WaitGroup
}

// convQueue holds one conversation's pending messages in arrival order.
// While active, exactly one goroutine drains it front to back.
type convQueue struct {
	pending []domain.InboundMessage
	active  bool
}

func New(cfg Config) (*Loop, error) {
	if cfg.Bus == nil || cfg.Gateway == nil || cfg.Catalogue == nil {
		return nil, errors.New("agent: bus, gateway, and catalogue are required")
	}
	if cfg.Hooks == nil {
		cfg.Hooks = hook.NewPipeline(slog.Default())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	return &Loop{
		cfg:   cfg,
		slots: make(chan struct{}, cfg.Workers),
		convs: make(map[string]*convQueue),
	}, nil
}

// Run drains the inbound side of the bus until ctx is cancelled or the bus
// closes, queueing each message onto its conversation.
func (l *Loop) Run(ctx context.Context) error {
	for {
		msg, err := l.cfg.Bus.ConsumeInbound(ctx)
		if err != nil {
			l.wg.Wait()
			if errors.Is(err, bus.ErrBusClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		l.dispatch(ctx, msg)
	}
}

// dispatch appends msg to its conversation's queue and starts a drainer when
// none is running. Appending happens on the consume goroutine, so queue order
// is bus arrival order.
func (l *Loop) dispatch(ctx context.Context, msg domain.InboundMessage) {
	key := msg.ConversationKey()

	l.mu.Lock()
	q := l.convs[key]
	if q == nil {
		q = &convQueue{}
		l.convs[key] = q
	}
	q.pending = append(q.pending, msg)
	start := !q.active
	if start {
		q.active = true
	}
	l.mu.Unlock()

	if start {
		l.wg.Add(1)
		go l.drainConversation(ctx, key, q)
	}
}

// drainConversation runs one conversation's queued turns front to back,
// taking a worker slot per turn. Turns for other conversations proceed on
// their own drainers.
func (l *Loop) drainConversation(ctx context.Context, key string, q *convQueue) {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			l.mu.Unlock()
			return
		}
		msg := q.pending[0]
		q.pending = q.pending[1:]
		l.mu.Unlock()

		select {
		case l.slots <- struct{}{}:
		case <-ctx.Done():
			l.mu.Lock()
			q.active = false
			l.mu.Unlock()
			return
		}
		l.handle(ctx, key, msg)
		<-l.slots
	}
}

// handle runs one full turn.
func (l *Loop) handle(ctx context.Context, key string, msg domain.InboundMessage) {
	turnID := uuid.NewString()
	logger := l.cfg.Logger.With("turn", turnID, "conversation", key)
	started := time.Now()

	reply, err := l.runTurn(ctx, logger, msg)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("turn cancelled")
			return
		}
		logger.Error("turn failed", "err", err)
		reply = fmt.Sprintf("Sorry, something went wrong: %v", err)
	}
	logger.Info("turn done", "elapsed", time.Since(started).Round(time.Millisecond))

	l.send(ctx, logger, msg, reply)
}

func (l *Loop) runTurn(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage) (string, error) {
	hctx := hook.Context{"message": msg, "content": msg.Content}
	hctx, err := l.cfg.Hooks.Execute(ctx, hook.PointMessageReceived, hctx)
	if err != nil {
		return "", err
	}
	content := msg.Content
	if c, ok := hctx["content"].(string); ok {
		content = c
	}

	messages := l.initialMessages(ctx, logger, msg, content)

	for round := 0; round < l.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := l.chat(ctx, messages)
		if err != nil {
			return "", err
		}
		logger.Debug("model replied", "round", round, "chars", len(resp.Content))

		step, err := react.Parse(resp.Content)
		if err != nil {
			// Protocol violation: tell the model and let it retry.
			logger.Warn("unparseable model output", "round", round)
			messages = append(messages,
				domain.Message{Role: "assistant", Content: resp.Content},
				domain.Message{Role: "user", Content: errorObservation("", fmt.Errorf("reply was not a valid JSON step; use the required format"))},
			)
			continue
		}

		messages = append(messages, domain.Message{Role: "assistant", Content: resp.Content})

		res, ok := react.Resolve(step.Action, l.cfg.Catalogue)
		if !ok {
			logger.Warn("unresolved action", "action", step.Action)
			messages = append(messages, domain.Message{
				Role:    "user",
				Content: errorObservation(step.Action, fmt.Errorf("unknown action %q; pick one of the listed tools or finish", step.Action)),
			})
			continue
		}

		if res.Terminal {
			answer := finalAnswer(step.ActionInput)
			l.persist(ctx, logger, msg.ConversationKey(), content, answer)
			return answer, nil
		}

		observation := l.runAction(ctx, logger, res.ToolName, step, msg)
		messages = append(messages, domain.Message{Role: "user", Content: observation})
	}

	logger.Warn("round limit reached", "rounds", l.cfg.MaxRounds)
	l.persist(ctx, logger, msg.ConversationKey(), content, exhaustedReply)
	return exhaustedReply, nil
}

// chat wraps the gateway call in the model.before / model.after hook points.
func (l *Loop) chat(ctx context.Context, messages []domain.Message) (*domain.ChatResponse, error) {
	hctx := hook.Context{"messages": messages}
	hctx, err := l.cfg.Hooks.Execute(ctx, hook.PointModelBefore, hctx)
	if err != nil {
		return nil, err
	}
	if m, ok := hctx["messages"].([]domain.Message); ok {
		messages = m
	}

	resp, err := l.cfg.Gateway.Chat(ctx, domain.ChatRequest{
		Messages: messages,
		Model:    l.cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	hctx = hook.Context{"response": resp}
	hctx, err = l.cfg.Hooks.Execute(ctx, hook.PointModelAfter, hctx)
	if err != nil {
		return nil, err
	}
	if r, ok := hctx["response"].(*domain.ChatResponse); ok {
		resp = r
	}
	return resp, nil
}

// runAction executes one tool with the tool.before / tool.after hook points.
// Failures become error observations, never turn aborts.
func (l *Loop) runAction(ctx context.Context, logger *slog.Logger, toolName string, step *react.Step, msg domain.InboundMessage) string {
	hctx := hook.Context{"tool": toolName, "input": step.ActionInput}
	hctx, err := l.cfg.Hooks.Execute(ctx, hook.PointToolBefore, hctx)
	if err != nil {
		return errorObservation(step.Action, err)
	}
	input := step.ActionInput
	if v, ok := hctx["input"]; ok {
		input = v
	}

	toolCtx, cancel := context.WithTimeout(ctx, l.cfg.ToolTimeout)
	result, execErr := l.cfg.Catalogue.Execute(toolCtx, toolName, input, msg)
	cancel()

	if execErr != nil {
		logger.Warn("tool failed", "tool", toolName, "err", execErr)
		return errorObservation(step.Action, execErr)
	}
	logger.Debug("tool done", "tool", toolName, "chars", len(result))

	hctx = hook.Context{"tool": toolName, "result": result}
	hctx, err = l.cfg.Hooks.Execute(ctx, hook.PointToolAfter, hctx)
	if err != nil {
		return errorObservation(step.Action, err)
	}
	if r, ok := hctx["result"].(string); ok {
		result = r
	}
	return observationContent(step.Action, result)
}

// initialMessages builds the system prompt, replayed history, and the user
// message for a fresh turn.
func (l *Loop) initialMessages(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage, content string) []domain.Message {
	messages := []domain.Message{{
		Role:    "system",
		Content: buildSystemPrompt(l.cfg.Persona, l.cfg.Catalogue.Definitions()),
	}}

	if l.cfg.Sessions != nil {
		history, err := l.cfg.Sessions.GetHistory(ctx, msg.ConversationKey(), l.cfg.HistorySize)
		if err != nil {
			logger.Warn("history load failed", "err", err)
		} else {
			messages = append(messages, history...)
		}
	}

	return append(messages, domain.Message{Role: "user", Content: content})
}

func (l *Loop) persist(ctx context.Context, logger *slog.Logger, key, userContent, reply string) {
	if l.cfg.Sessions == nil {
		return
	}
	if err := l.cfg.Sessions.AppendMessage(ctx, key, "user", userContent); err != nil {
		logger.Warn("session append failed", "role", "user", "err", err)
	}
	if err := l.cfg.Sessions.AppendMessage(ctx, key, "assistant", reply); err != nil {
		logger.Warn("session append failed", "role", "assistant", "err", err)
	}
}

// send runs the message.sending hooks and publishes the outbound reply.
func (l *Loop) send(ctx context.Context, logger *slog.Logger, msg domain.InboundMessage, reply string) {
	hctx := hook.Context{"content": reply, "channel": msg.Channel, "chat_id": msg.ChatID}
	hctx, err := l.cfg.Hooks.Execute(ctx, hook.PointMessageSending, hctx)
	if err != nil {
		logger.Error("sending hook failed", "err", err)
		return
	}
	if c, ok := hctx["content"].(string); ok {
		reply = c
	}
	if reply == "" {
		return
	}

	out := domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply,
	}
	if err := l.cfg.Bus.PublishOutbound(out); err != nil {
		logger.Error("outbound publish failed", "err", err)
	}
}

// finalAnswer extracts the reply text from a finish action's input.
func finalAnswer(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"answer", "text", "content", "response"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return "Done."
}
