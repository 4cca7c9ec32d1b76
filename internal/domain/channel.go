package domain

import "context"

// Channel is a user-facing front-end (CLI, Telegram, Discord, Web).
// Adapters own their lifecycle; the core only publishes and consumes
// bus envelopes.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, chatID, content string) error
}
