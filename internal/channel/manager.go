package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"nanoagent/internal/bus"
	"nanoagent/internal/domain"
)

// Manager starts every registered channel and routes outbound bus messages
// to the channel named in each message.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]domain.Channel
	logger   *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		channels: make(map[string]domain.Channel),
		logger:   logger,
	}
}

func (m *Manager) Register(ch domain.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
	m.logger.Info("channel registered", "name", ch.Name())
}

func (m *Manager) Get(name string) domain.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, n)
	}
	return names
}

// Run starts every channel, then drains the outbound side of b until ctx is
// cancelled or the bus closes. Adapter Start errors stop the whole manager;
// per-message delivery errors are logged and skipped.
func (m *Manager) Run(ctx context.Context, b domain.MessageBus) error {
	m.mu.RLock()
	channels := make([]domain.Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startErrs := make(chan error, len(channels))
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch domain.Channel) {
			defer wg.Done()
			if err := ch.Start(ctx, b); err != nil {
				startErrs <- fmt.Errorf("channel %s: %w", ch.Name(), err)
			}
		}(ch)
	}

	// all channels returning cleanly (e.g. CLI /quit) also ends the run
	allExited := make(chan struct{})
	go func() {
		wg.Wait()
		close(allExited)
	}()

	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- m.dispatch(ctx, b) }()

	var runErr error
	select {
	case runErr = <-startErrs:
	case runErr = <-dispatchDone:
	case <-allExited:
	case <-ctx.Done():
	}

	cancel()
	for _, ch := range channels {
		if err := ch.Stop(); err != nil {
			m.logger.Warn("channel stop failed", "name", ch.Name(), "err", err)
		}
	}
	wg.Wait()
	return runErr
}

func (m *Manager) dispatch(ctx context.Context, b domain.MessageBus) error {
	for {
		msg, err := b.ConsumeOutbound(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrBusClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		ch := m.Get(msg.Channel)
		if ch == nil {
			m.logger.Warn("outbound for unknown channel", "channel", msg.Channel)
			continue
		}
		if err := ch.Send(ctx, msg.ChatID, msg.Content); err != nil {
			m.logger.Error("outbound send failed",
				"channel", msg.Channel, "chat_id", msg.ChatID, "err", err)
		}
	}
}
