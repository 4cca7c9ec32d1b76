// Package bus provides the in-process message transport between channel
// adapters and the agent loop.
package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"nanoagent/internal/domain"
)

// ErrBusClosed is returned when publishing to or consuming from a bus that
// has been permanently closed.
var ErrBusClosed = errors.New("bus: closed")

// InMemoryBus implements domain.MessageBus with two unbounded FIFO queues.
// Publish appends and never blocks; Consume blocks until an item arrives.
// Per-conversation ordering holds because each direction has one logical
// consumer and the agent loop serializes turns per conversation key.
type InMemoryBus struct {
	inbound  *queue[domain.InboundMessage]
	outbound *queue[domain.OutboundMessage]
	logger   *slog.Logger
}

func New(logger *slog.Logger) *InMemoryBus {
	return &InMemoryBus{
		inbound:  newQueue[domain.InboundMessage](),
		outbound: newQueue[domain.OutboundMessage](),
		logger:   logger,
	}
}

func (b *InMemoryBus) PublishInbound(msg domain.InboundMessage) error {
	if err := b.inbound.push(msg); err != nil {
		b.logger.Warn("publish on closed bus", "channel", msg.Channel, "chat", msg.ChatID)
		return err
	}
	return nil
}

func (b *InMemoryBus) PublishOutbound(msg domain.OutboundMessage) error {
	if err := b.outbound.push(msg); err != nil {
		b.logger.Warn("publish on closed bus", "channel", msg.Channel, "chat", msg.ChatID)
		return err
	}
	return nil
}

func (b *InMemoryBus) ConsumeInbound(ctx context.Context) (domain.InboundMessage, error) {
	return b.inbound.pop(ctx)
}

func (b *InMemoryBus) ConsumeOutbound(ctx context.Context) (domain.OutboundMessage, error) {
	return b.outbound.pop(ctx)
}

func (b *InMemoryBus) InboundLen() int  { return b.inbound.len() }
func (b *InMemoryBus) OutboundLen() int { return b.outbound.len() }

// Close permanently closes both queues. Items still enqueued remain
// consumable; publishing fails immediately.
func (b *InMemoryBus) Close() {
	b.inbound.close()
	b.outbound.close()
}

// queue is an unbounded FIFO with blocking pop. wake carries at most one
// pending signal; pop re-signals when items remain so a burst of pushes is
// never lost.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *queue[T]) push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrBusClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *queue[T]) pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrBusClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.done:
			// Re-check: the queue may have been drained already.
		case <-q.wake:
		}
	}
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}
