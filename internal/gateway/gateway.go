// Package gateway routes chat requests to registered model providers with
// priority-ordered failover.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"nanoagent/internal/domain"
)

// ErrNoProviders is returned when no registered provider matches the
// requested model.
var ErrNoProviders = errors.New("gateway: no matching providers registered")

// Wildcard matches any model name in a registration's pattern set.
const Wildcard = "*"

type registration struct {
	id       string
	handle   domain.Provider
	patterns []string
	priority int // lower tried first
	seq      int // registration order, breaks priority ties
}

// Gateway is the provider registry. Registrations are keyed by id and
// replaced wholesale on re-registration. The registry is read-mostly and
// safe for concurrent use.
type Gateway struct {
	mu          sync.RWMutex
	regs        []registration
	seq         int
	defaultID   string
	chatTimeout time.Duration
	logger      *slog.Logger
}

type Config struct {
	DefaultProvider string
	ChatTimeout     time.Duration // 0 = caller-supplied context only
	Logger          *slog.Logger
}

func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		defaultID:   cfg.DefaultProvider,
		chatTimeout: cfg.ChatTimeout,
		logger:      cfg.Logger,
	}
}

// Register adds a provider under id. Registering an existing id replaces its
// priority and pattern set wholesale, keeping the original registration
// order, so repeated extension activation is idempotent.
func (g *Gateway) Register(id string, handle domain.Provider, patterns []string, priority int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(patterns) == 0 {
		patterns = []string{Wildcard}
	}
	for i := range g.regs {
		if g.regs[i].id == id {
			g.regs[i].handle = handle
			g.regs[i].patterns = patterns
			g.regs[i].priority = priority
			g.logger.Debug("provider re-registered", "id", id, "priority", priority)
			return
		}
	}

	g.seq++
	g.regs = append(g.regs, registration{
		id:       id,
		handle:   handle,
		patterns: patterns,
		priority: priority,
		seq:      g.seq,
	})
	g.logger.Info("provider registered", "id", id, "priority", priority, "patterns", patterns)
}

// SetDefault names the registration whose patterns are used when a request
// carries no model.
func (g *Gateway) SetDefault(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.defaultID = id
}

// Chat tries every matching candidate in ascending priority order. Each
// failure (including timeout) advances silently to the next candidate; only
// when all candidates fail does Chat fail, with one aggregated error.
// Results are never cached: every call re-attempts in priority order.
func (g *Gateway) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	candidates := g.candidates(req.Model)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w (model %q)", ErrNoProviders, req.Model)
	}

	var failures []error
	for _, c := range candidates {
		resp, err := g.tryChat(ctx, c, req)
		if err == nil {
			return resp, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", c.id, err))
		g.logger.Warn("provider failed, trying next",
			"provider", c.id,
			"model", req.Model,
			"error", err,
		)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("gateway: all providers unavailable for model %q: %w",
		req.Model, errors.Join(failures...))
}

func (g *Gateway) tryChat(ctx context.Context, c registration, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if g.chatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.chatTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := c.handle.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}

// candidates returns matching registrations sorted by ascending priority,
// ties broken by registration order. An empty model falls back to the
// default registration's pattern set.
func (g *Gateway) candidates(model string) []registration {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var matches []registration
	if model != "" {
		for _, r := range g.regs {
			if matchesModel(r.patterns, model) {
				matches = append(matches, r)
			}
		}
	} else {
		wanted := g.defaultPatterns()
		for _, r := range g.regs {
			if intersects(r.patterns, wanted) {
				matches = append(matches, r)
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].priority != matches[j].priority {
			return matches[i].priority < matches[j].priority
		}
		return matches[i].seq < matches[j].seq
	})
	return matches
}

// defaultPatterns is called with g.mu held.
func (g *Gateway) defaultPatterns() []string {
	for _, r := range g.regs {
		if r.id == g.defaultID {
			return r.patterns
		}
	}
	// No default configured: any provider qualifies.
	return []string{Wildcard}
}

func matchesModel(patterns []string, model string) bool {
	for _, p := range patterns {
		if matchPattern(p, model) {
			return true
		}
	}
	return false
}

// matchPattern supports the bare wildcard, a trailing-asterisk prefix form
// ("gpt-4*"), and exact names.
func matchPattern(p, model string) bool {
	if p == Wildcard {
		return true
	}
	if strings.HasSuffix(p, "*") {
		return strings.HasPrefix(model, strings.TrimSuffix(p, "*"))
	}
	return p == model
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if x == Wildcard {
			return true
		}
		for _, y := range b {
			if y == Wildcard || x == y {
				return true
			}
		}
	}
	return false
}

// Available reports whether at least one registered provider is healthy,
// without issuing a chat call.
func (g *Gateway) Available(ctx context.Context) bool {
	g.mu.RLock()
	regs := make([]registration, len(g.regs))
	copy(regs, g.regs)
	g.mu.RUnlock()

	for _, r := range regs {
		if r.handle.Healthy(ctx) == nil {
			return true
		}
	}
	return false
}

// ProviderNames returns the registered ids in registration order.
func (g *Gateway) ProviderNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.regs))
	for _, r := range g.regs {
		names = append(names, r.id)
	}
	return names
}
