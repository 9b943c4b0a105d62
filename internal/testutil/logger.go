// Package testutil provides shared helpers for tests across packages.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// QuietLogger returns a logger that discards everything. Most tests want
// the logging code path exercised without the noise.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Entry is one log record captured by a Recorder.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// Recorder is a slog.Handler that captures records so tests can assert on
// what was logged.
//
// Thread-safety: Recorder is safe for concurrent use via internal mutex,
// so it can sit behind code that logs from multiple goroutines.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty log recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Logger returns a logger that writes into the recorder.
func (r *Recorder) Logger() *slog.Logger {
	return slog.New(r)
}

// Enabled reports true for every level; tests filter after the fact.
func (r *Recorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle captures the record's level, message, and attributes.
func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	e := Entry{
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   make(map[string]string, rec.NumAttrs()),
	}
	rec.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.String()
		return true
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// WithAttrs returns the recorder unchanged; attributes are captured from
// the records themselves.
func (r *Recorder) WithAttrs([]slog.Attr) slog.Handler {
	return r
}

// WithGroup returns the recorder unchanged.
func (r *Recorder) WithGroup(string) slog.Handler {
	return r
}

// Entries returns a copy of everything captured so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Has reports whether any captured record at the given level contains the
// substring in its message.
func (r *Recorder) Has(level slog.Level, substring string) bool {
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substring) {
			return true
		}
	}
	return false
}
