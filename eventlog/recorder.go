package eventlog

import (
	"context"
	"log/slog"
	"sync"
)

// Event is one recorded log record.
type Event struct {
	Name  string
	Level slog.Level
	Attrs map[string]any
}

// Recorder is an in-memory slog.Handler that keeps every event. It is meant
// for asserting on emitted events in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	attrs  []slog.Attr
	parent *Recorder
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Logger returns a logger writing into the recorder.
func (r *Recorder) Logger() *slog.Logger { return slog.New(r) }

func (r *Recorder) root() *Recorder {
	if r.parent != nil {
		return r.parent
	}
	return r
}

func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	e := Event{Name: rec.Message, Level: rec.Level, Attrs: make(map[string]any)}
	for _, a := range r.attrs {
		e.Attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Resolve().Any()
		return true
	})
	root := r.root()
	root.mu.Lock()
	root.events = append(root.events, e)
	root.mu.Unlock()
	return nil
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Recorder{attrs: append(append([]slog.Attr(nil), r.attrs...), attrs...), parent: r.root()}
}

// WithGroup is accepted but groups are flattened.
func (r *Recorder) WithGroup(string) slog.Handler { return r }

// Events returns the recorded events, optionally only those with the given name.
func (r *Recorder) Events(name ...string) []Event {
	root := r.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	if len(name) == 0 {
		return append([]Event(nil), root.events...)
	}
	var out []Event
	for _, e := range root.events {
		if e.Name == name[0] {
			out = append(out, e)
		}
	}
	return out
}
