// Package eventlog keeps an append-only record of connection lifecycle events.
package eventlog

import (
	"log/slog"
	"sync"

	"github.com/pscheid92/storepulse/internal/domain"
)

// Log is an append-only, in-memory list of connection events.
type Log struct {
	mu     sync.RWMutex
	events []domain.ConnectionEvent
}

func New() *Log {
	return &Log{}
}

// Append records the event and writes it to the structured log.
func (l *Log) Append(event domain.ConnectionEvent) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	attrs := []any{
		"kind", event.Kind,
		"connection_id", event.ConnectionID,
		"remote_addr", event.RemoteAddress,
	}
	if event.Kind == domain.EventKindDisconnect {
		attrs = append(attrs, "reason", event.Reason, "duration", event.OccurredAt.Sub(event.ConnectedAt))
	}
	slog.Info("Connection event", attrs...)
}

// Recent returns up to n of the latest events in the order they were appended.
// A non-positive n returns every event.
func (l *Log) Recent(n int) []domain.ConnectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if n > 0 && n < len(l.events) {
		start = len(l.events) - n
	}

	result := make([]domain.ConnectionEvent, len(l.events)-start)
	copy(result, l.events[start:])
	return result
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
