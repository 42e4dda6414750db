// Package notify delivers user-facing notices.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Log writes notices to a structured logger and keeps them for display.
type Log struct {
	log *slog.Logger

	mu       sync.Mutex
	messages []string
}

// NewLog creates a notifier. A nil logger uses slog.Default().
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log.With("component", "notify")}
}

// Notify implements ports.Notifier.
func (n *Log) Notify(ctx context.Context, message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	n.log.InfoContext(ctx, "notice", "message", message)
}

// Messages returns every notice delivered so far.
func (n *Log) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
