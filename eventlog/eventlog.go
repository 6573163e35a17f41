// Package eventlog is the append-only event sink for resolution,
// translation and execution attempts. Each event is one slog record whose
// message is the event name and whose attributes are the event fields.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

// Event names.
const (
	QueryReceived     = "QueryReceived"
	ColumnResolved    = "ColumnResolved"
	StrategyFailed    = "ResolutionStrategyFailed"
	Translated        = "Translated"
	TranslationFailed = "TranslationFailed"
	Executed          = "Executed"
	ExecutionFailed   = "ExecutionFailed"
	SlowQuery         = "SlowQuery"
)

// DefaultPath is the log file used when none is configured.
const DefaultPath = "app_metrics.log"

const timeLayout = "2006-01-02 15:04:05"

// Config selects the sinks.
type Config struct {
	Path    string     // event file, appended to; empty disables the file sink
	Level   slog.Level // minimum level for every sink
	Console io.Writer  // optional human-facing sink, e.g. os.Stderr
	SeqURL  string     // optional Seq server, e.g. http://localhost:5341
}

// multiHandler fans each record out to every sink that accepts its level.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// Open builds the event logger and returns a cleanup function that flushes
// and closes every sink.
func Open(cfg Config) (*slog.Logger, func(), error) {
	var (
		handlers []slog.Handler
		closers  []func()
	)
	opts := &slog.HandlerOptions{Level: cfg.Level, ReplaceAttr: formatTime}

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open event log %s: %w", cfg.Path, err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, opts))
		closers = append(closers, func() { _ = f.Close() })
	}

	if cfg.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(cfg.Console, opts))
	}

	if cfg.SeqURL != "" {
		_, seqHandler := slogseq.NewLogger(
			cfg.SeqURL,
			slogseq.WithBatchSize(1),
			slogseq.WithFlushInterval(500*time.Millisecond),
			slogseq.WithHandlerOptions(&slog.HandlerOptions{Level: cfg.Level}),
		)
		if seqHandler != nil {
			handlers = append(handlers, seqHandler)
			closers = append(closers, func() { seqHandler.Close() })
		}
	}

	closeFn := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.DiscardHandler), closeFn, nil
	case 1:
		return slog.New(handlers[0]), closeFn, nil
	}
	return slog.New(&multiHandler{handlers: handlers}), closeFn, nil
}

// formatTime writes timestamps as "2006-01-02 15:04:05".
func formatTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().Format(timeLayout))
	}
	return a
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
