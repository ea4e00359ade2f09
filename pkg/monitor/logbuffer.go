package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultBufferSize is how many recent log records the monitor retains.
const DefaultBufferSize = 512

// Entry is one retained log record.
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// LogBuffer is a fixed-size ring of recent log records. It feeds the
// monitor's status and error-analysis queries.
type LogBuffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewLogBuffer creates a buffer retaining up to capacity records.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &LogBuffer{entries: make([]Entry, capacity)}
}

// Record appends one entry, evicting the oldest when full.
func (b *LogBuffer) Record(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next++
	if b.next == len(b.entries) {
		b.next = 0
		b.full = true
	}
}

// Recent returns entries at or after since, oldest first.
func (b *LogBuffer) Recent(since time.Time) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0)
	appendRange := func(entries []Entry) {
		for _, e := range entries {
			if !e.Time.Before(since) {
				out = append(out, e)
			}
		}
	}
	if b.full {
		appendRange(b.entries[b.next:])
	}
	appendRange(b.entries[:b.next])
	return out
}

// CountAtLevel counts retained records at or above level since the cutoff.
func (b *LogBuffer) CountAtLevel(level slog.Level, since time.Time) int {
	n := 0
	for _, e := range b.Recent(since) {
		if e.Level >= level {
			n++
		}
	}
	return n
}

// Handler wraps a slog handler so every record also lands in the buffer.
func (b *LogBuffer) Handler(next slog.Handler) slog.Handler {
	return &teeHandler{buf: b, next: next}
}

type teeHandler struct {
	buf  *LogBuffer
	next slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// Warnings and errors are always captured for the monitor, even when
	// the delegate filters them out.
	return level >= slog.LevelWarn || h.next.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	h.buf.Record(Entry{Time: r.Time, Level: r.Level, Message: r.Message})
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{buf: h.buf, next: h.next.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{buf: h.buf, next: h.next.WithGroup(name)}
}
