package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/tvremote/idgen"
)

// Event is one control action taken by the screen controller: a navigation,
// a recovery, a caption toggle, a session restart.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// EventLogger keeps the most recent events in memory and mirrors each one
// to slog.
type EventLogger struct {
	logger *slog.Logger
	newID  idgen.Generator

	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger keeps up to capacity events (100 when capacity <= 0).
func NewEventLogger(logger *slog.Logger, capacity int, opts ...EventLoggerOption) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = 100
	}
	l := &EventLogger{
		logger: logger,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		events: make([]Event, capacity),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records ev, filling ID and CreatedAt when empty.
func (l *EventLogger) LogEvent(ctx context.Context, ev Event) Event {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events[l.next] = ev
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	level := slog.LevelInfo
	if !ev.Success {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "control event",
		"event_id", ev.ID,
		"type", ev.Type,
		"action", ev.Action,
		"target", ev.Target,
		"details", ev.Details,
		"success", ev.Success,
	)
	return ev
}

// Recent returns up to n events, newest first. n <= 0 returns all kept.
func (l *EventLogger) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.events)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (l.next - i + len(l.events)) % len(l.events)
		out = append(out, l.events[idx])
	}
	return out
}
