package projection

import (
	"chat-sync/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Latency logs how long a message took from its creation to the first
// snapshot showing it to this observer.
type Latency struct {
	log       *slog.Logger
	threshold time.Duration
	now       func() time.Time

	mu     sync.Mutex
	primed bool
	seen   map[string]struct{}
}

func NewLatency(log *slog.Logger, threshold time.Duration) *Latency {
	return &Latency{log: log, threshold: threshold, now: time.Now, seen: make(map[string]struct{})}
}

func (l *Latency) Consume(_ context.Context, e event.DomainEvent) error {
	replaced, ok := e.(event.MessagesReplaced)
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	// The first snapshot carries the history, it says nothing about delivery time.
	first := !l.primed
	l.primed = true
	for _, m := range replaced.Messages {
		if _, known := l.seen[m.ID]; known {
			continue
		}
		l.seen[m.ID] = struct{}{}
		if first {
			continue
		}
		leadTime := l.now().Sub(m.CreatedAt)
		l.log.Debug("telemetry: delivery latency",
			"room_id", replaced.Room,
			"author", m.SentBy,
			"lead_time_ms", leadTime.Milliseconds(),
		)
		if leadTime > l.threshold {
			l.log.Warn("high latency detected", "room_id", replaced.Room, "lead_time", leadTime)
		}
	}
	return nil
}
