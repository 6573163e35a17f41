// Package sandbox runs untrusted expressions against a private copy of a
// table, memoizes outcomes, and records timing.
package sandbox

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spektr-org/sheetql/engine"
	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/expr"
)

const (
	// DefaultCacheSize bounds the outcome cache.
	DefaultCacheSize = 256
	// DefaultSlowThreshold marks an execution as slow. It never aborts one.
	DefaultSlowThreshold = 10 * time.Second
)

// Outcome is the result of one execution. Table is nil exactly when Err is
// set.
type Outcome struct {
	Expression string
	Table      *engine.Table
	Err        error
	Elapsed    time.Duration
	Cached     bool
	Slow       bool
}

// OK reports whether the execution produced a table.
func (o Outcome) OK() bool { return o.Err == nil && o.Table != nil }

// Evaluator runs one expression against a table it may consume.
type Evaluator interface {
	Eval(ctx context.Context, expression string, t *engine.Table) (*engine.Table, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, expression string, t *engine.Table) (*engine.Table, error)

func (f EvaluatorFunc) Eval(ctx context.Context, expression string, t *engine.Table) (*engine.Table, error) {
	return f(ctx, expression, t)
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Entries  int   `json:"entries"`
	Capacity int   `json:"capacity"`
}

type entry struct {
	table *engine.Table
	err   error
}

// Executor evaluates expressions. It is safe for concurrent use.
type Executor struct {
	eval      Evaluator
	resolve   expr.Resolver
	cacheSize int
	slow      time.Duration
	timeout   time.Duration
	logger    *slog.Logger

	cache  *lru.Cache[uint64, entry]
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithEvaluator replaces the expression interpreter.
func WithEvaluator(e Evaluator) Option {
	return func(x *Executor) { x.eval = e }
}

// WithColumnResolver offers unknown column names to r before an expression
// fails. Only used by the built-in interpreter.
func WithColumnResolver(r expr.Resolver) Option {
	return func(x *Executor) { x.resolve = r }
}

// WithCacheSize sets the number of cached outcomes.
func WithCacheSize(n int) Option {
	return func(x *Executor) { x.cacheSize = n }
}

// WithSlowThreshold sets the duration past which an outcome is flagged slow.
// Zero disables the flag.
func WithSlowThreshold(d time.Duration) Option {
	return func(x *Executor) { x.slow = d }
}

// WithTimeout aborts evaluations that run longer than d. Zero, the default,
// means no deadline beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(x *Executor) { x.timeout = d }
}

// WithLogger sets the event logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Executor) { x.logger = l }
}

// New creates an executor.
func New(opts ...Option) (*Executor, error) {
	x := &Executor{cacheSize: DefaultCacheSize, slow: DefaultSlowThreshold}
	for _, opt := range opts {
		opt(x)
	}
	if x.cacheSize <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", x.cacheSize)
	}
	if x.timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}
	cache, err := lru.New[uint64, entry](x.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	x.cache = cache
	if x.eval == nil {
		x.eval = interpreter{resolve: x.resolve}
	}
	x.logger = eventlog.OrDefault(x.logger)
	return x, nil
}

// Execute evaluates expression with df bound to a private copy of t. The
// caller's table is never modified. Failures come back in Outcome.Err.
func (x *Executor) Execute(ctx context.Context, expression string, t *engine.Table) Outcome {
	start := time.Now()
	out := Outcome{Expression: expression}
	if t == nil {
		out.Err = errors.New("no table loaded")
		x.failed(out)
		return out
	}

	key := cacheKey(expression, t)
	if e, ok := x.cache.Get(key); ok {
		x.hits.Add(1)
		out.Cached = true
		out.Err = e.err
		if e.table != nil {
			out.Table = e.table.Clone()
		}
		return x.finish(out, start)
	}
	x.misses.Add(1)

	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}
	result, err := x.run(ctx, expression, t.Clone())
	if err == nil && result == nil {
		err = errors.New("expression produced no result")
	}
	if !isContextErr(err) {
		x.cache.Add(key, entry{table: result, err: err})
	}
	out.Err = err
	if err == nil {
		out.Table = result.Clone()
	}
	return x.finish(out, start)
}

func (x *Executor) run(ctx context.Context, expression string, t *engine.Table) (result *engine.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	return x.eval.Eval(ctx, expression, t)
}

func (x *Executor) finish(out Outcome, start time.Time) Outcome {
	out.Elapsed = time.Since(start)
	out.Slow = x.slow > 0 && out.Elapsed > x.slow
	if out.Err != nil {
		x.failed(out)
		return out
	}
	x.logger.Info(eventlog.Executed,
		"expression", out.Expression,
		"rows", out.Table.NumRows(),
		"columns", out.Table.NumCols(),
		"cached", out.Cached,
		"elapsed", out.Elapsed.Seconds())
	if out.Slow {
		x.logger.Warn(eventlog.SlowQuery,
			"expression", out.Expression,
			"elapsed", out.Elapsed.Seconds(),
			"threshold", x.slow.Seconds())
	}
	return out
}

func (x *Executor) failed(out Outcome) {
	x.logger.Warn(eventlog.ExecutionFailed,
		"expression", out.Expression,
		"error", out.Err.Error(),
		"cached", out.Cached,
		"elapsed", out.Elapsed.Seconds())
}

// Stats returns the cache counters.
func (x *Executor) Stats() Stats {
	return Stats{
		Hits:     x.hits.Load(),
		Misses:   x.misses.Load(),
		Entries:  x.cache.Len(),
		Capacity: x.cacheSize,
	}
}

// SlowThreshold returns the duration past which outcomes are flagged slow.
func (x *Executor) SlowThreshold() time.Duration { return x.slow }

// Purge empties the cache.
func (x *Executor) Purge() { x.cache.Purge() }

func cacheKey(expression string, t *engine.Table) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(expression)
	var buf [9]byte
	binary.LittleEndian.PutUint64(buf[1:], t.Fingerprint())
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type interpreter struct{ resolve expr.Resolver }

func (i interpreter) Eval(ctx context.Context, expression string, t *engine.Table) (*engine.Table, error) {
	var opts []expr.Option
	if i.resolve != nil {
		opts = append(opts, expr.WithResolver(i.resolve))
	}
	return expr.Eval(ctx, expression, t, opts...)
}
