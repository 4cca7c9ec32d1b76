package domain

import "context"

// SessionStore holds per-conversation history, keyed by channel:chatID.
// The core consumes this interface; it never defines the persisted schema.
type SessionStore interface {
	GetHistory(ctx context.Context, key string, limit int) ([]Message, error)
	AppendMessage(ctx context.Context, key, role, content string) error
	Close() error
}
