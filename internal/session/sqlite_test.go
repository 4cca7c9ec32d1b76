package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndGetHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pairs := []struct{ role, content string }{
		{"user", "hello"},
		{"assistant", "hi there"},
		{"user", "list files"},
	}
	for _, p := range pairs {
		if err := store.AppendMessage(ctx, "cli:1", p.role, p.content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := store.GetHistory(ctx, "cli:1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	if history[0].Content != "hello" || history[2].Content != "list files" {
		t.Fatalf("history out of order: %+v", history)
	}
}

func TestGetHistory_LimitKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c", "d"} {
		if err := store.AppendMessage(ctx, "cli:1", "user", content); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := store.GetHistory(ctx, "cli:1", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Content != "c" || history[1].Content != "d" {
		t.Fatalf("expected most recent in order, got %+v", history)
	}
}

func TestGetHistory_ConversationsIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AppendMessage(ctx, "cli:1", "user", "one"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendMessage(ctx, "telegram:42", "user", "two"); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := store.GetHistory(ctx, "telegram:42", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Content != "two" {
		t.Fatalf("conversations leaked: %+v", history)
	}
}

func TestGetHistory_UnknownKeyIsEmpty(t *testing.T) {
	store := newTestStore(t)
	history, err := store.GetHistory(context.Background(), "nope:0", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}
}
