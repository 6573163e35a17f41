// Package resolver maps a free-form column reference onto one of a table's
// actual column names.
//
// Resolution runs an ordered cascade of strategies, cheapest and most
// certain first: exact normalized match, synonym lookup, fuzzy similarity,
// and finally an LLM suggestion. The first strategy that answers wins.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/llm"
)

// Result is the outcome of one resolution. Method is always set; it is
// MethodNone when nothing matched.
type Result struct {
	Header string  `json:"header"`
	Column string  `json:"column,omitempty"`
	Found  bool    `json:"found"`
	Method Method  `json:"method"`
	Score  float64 `json:"score,omitempty"`
}

// Resolver runs a cascade of strategies.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the event logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New builds a resolver from an explicit strategy order.
func New(strategies []Strategy, opts ...Option) *Resolver {
	r := &Resolver{strategies: append([]Strategy(nil), strategies...)}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = eventlog.OrDefault(r.logger)
	return r
}

// NewDefault builds the standard cascade: exact, synonym (70), fuzzy (80)
// and, when client is non-nil, llm.
func NewDefault(syn Synonyms, client llm.Client, opts ...Option) *Resolver {
	strategies := []Strategy{
		ExactStrategy{},
		SynonymStrategy{Synonyms: syn, Threshold: DefaultSynonymThreshold},
		FuzzyStrategy{Threshold: DefaultFuzzyThreshold},
	}
	if client != nil {
		strategies = append(strategies, LLMStrategy{Client: client})
	}
	return New(strategies, opts...)
}

// Methods lists the cascade order.
func (r *Resolver) Methods() []Method {
	out := make([]Method, len(r.strategies))
	for i, s := range r.strategies {
		out[i] = s.Method()
	}
	return out
}

// Resolve maps header onto one of candidates. It never fails: a strategy
// that errors or panics is logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, header string, candidates []string) Result {
	set := NewCandidateSet(candidates)
	res := Result{Header: header, Method: MethodNone}

	for _, s := range r.strategies {
		m, ok, err := r.attempt(ctx, s, header, set)
		if err != nil {
			r.logger.Warn(eventlog.StrategyFailed,
				"header", header,
				"method", string(s.Method()),
				"error", err.Error())
			continue
		}
		if !ok || !set.Contains(m.Column) {
			continue
		}
		res = Result{Header: header, Column: m.Column, Found: true, Method: s.Method(), Score: m.Score}
		break
	}

	r.logger.Info(eventlog.ColumnResolved,
		"header", header,
		"column", res.Column,
		"method", string(res.Method),
		"score", res.Score)
	return res
}

func (r *Resolver) attempt(ctx context.Context, s Strategy, header string, set CandidateSet) (m Match, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			m, ok, err = Match{}, false, fmt.Errorf("%s strategy panicked: %v", s.Method(), p)
		}
	}()
	return s.Attempt(ctx, header, set)
}
