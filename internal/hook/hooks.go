// Package hook provides an ordered, cancellable middleware pipeline invoked
// at defined extension points of the agent turn.
package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Point names an extension point in the agent turn.
type Point string

const (
	PointMessageReceived Point = "message.received"
	PointModelBefore     Point = "model.before"
	PointModelAfter      Point = "model.after"
	PointToolBefore      Point = "tool.before"
	PointToolAfter       Point = "tool.after"
	PointMessageSending  Point = "message.sending"
)

// DefaultPriority is used when a caller has no ordering preference.
const DefaultPriority = 100

// Context is the accumulated state passed through a hook chain. Each hook
// returns the (possibly modified) context for the next hook.
type Context map[string]any

// Func is a single hook. Returning an error aborts the chain; the error
// propagates to the caller of Execute.
type Func func(ctx context.Context, hctx Context) (Context, error)

type entry struct {
	fn       Func
	priority int
	seq      int
}

// Pipeline holds registered hooks per point. Registration order breaks
// priority ties, so execution is stable.
type Pipeline struct {
	mu     sync.RWMutex
	hooks  map[Point][]entry
	seq    int
	logger *slog.Logger
}

func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		hooks:  make(map[Point][]entry),
		logger: logger,
	}
}

// Register adds a hook at the given point. Hooks run in ascending priority.
func (p *Pipeline) Register(point Point, fn Func, priority int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.hooks[point] = append(p.hooks[point], entry{fn: fn, priority: priority, seq: p.seq})
	p.logger.Debug("hook registered", "point", string(point), "priority", priority)
}

// Execute runs every hook at point in order, threading the context through.
// With no hooks registered it returns hctx unchanged. The first failing hook
// aborts the chain.
func (p *Pipeline) Execute(ctx context.Context, point Point, hctx Context) (Context, error) {
	p.mu.RLock()
	entries := make([]entry, len(p.hooks[point]))
	copy(entries, p.hooks[point])
	p.mu.RUnlock()

	if len(entries) == 0 {
		return hctx, nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority < entries[j].priority
		}
		return entries[i].seq < entries[j].seq
	})

	if hctx == nil {
		hctx = Context{}
	}
	for _, e := range entries {
		next, err := e.fn(ctx, hctx)
		if err != nil {
			return nil, fmt.Errorf("hook at %s: %w", point, err)
		}
		if next != nil {
			hctx = next
		}
	}
	return hctx, nil
}

// Clear removes all hooks registered at point, leaving other points intact.
func (p *Pipeline) Clear(point Point) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hooks, point)
}

// Len reports how many hooks are registered at point.
func (p *Pipeline) Len(point Point) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.hooks[point])
}
