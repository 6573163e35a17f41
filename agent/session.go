// Package agent drives one interactive session: a loaded workbook, the
// sheet currently in focus, and the request pipeline from natural language
// to a result table.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spektr-org/sheetql/engine"
	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/expr"
	"github.com/spektr-org/sheetql/resolver"
	"github.com/spektr-org/sheetql/sandbox"
	"github.com/spektr-org/sheetql/translator"
	"github.com/spektr-org/sheetql/workbook"
)

// State is a step of the request pipeline.
type State string

const (
	Received          State = "Received"
	Translating       State = "Translating"
	TranslationFailed State = "TranslationFailed"
	Translated        State = "Translated"
	Executing         State = "Executing"
	ExecutionFailed   State = "ExecutionFailed"
	Executed          State = "Executed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == TranslationFailed || s == ExecutionFailed || s == Executed
}

// User-facing messages.
const (
	MsgTranslationFailed = "Could not generate a valid expression. Try rewording your query."
	MsgExecutionFailed   = "The query could not be executed."
	MsgNoSheet           = "Please load a sheet first."
)

// ErrNoSheet is returned by Run and Execute before any sheet is loaded.
var ErrNoSheet = errors.New("no sheet loaded")

// Outcome is the end state of one request.
type Outcome struct {
	ID         string              `json:"id"`
	Category   translator.Category `json:"category,omitempty"`
	Request    string              `json:"request,omitempty"`
	State      State               `json:"state"`
	Trail      []State             `json:"trail"`
	Expression string              `json:"expression,omitempty"`
	Table      *engine.Table       `json:"-"`
	Elapsed    time.Duration       `json:"elapsed"`
	Cached     bool                `json:"cached,omitempty"`
	Slow       bool                `json:"slow,omitempty"`
	Err        error               `json:"-"`
	Message    string              `json:"message"`
}

// OK reports whether the request produced a table.
func (o Outcome) OK() bool { return o.State == Executed }

func (o *Outcome) enter(s State) {
	o.State = s
	o.Trail = append(o.Trail, s)
}

// Session is single-user state. It is not safe for concurrent use.
type Session struct {
	translator *translator.Translator
	executor   *sandbox.Executor
	resolver   *resolver.Resolver
	logger     *slog.Logger
	newID      func() string

	book  *workbook.Workbook
	sheet string
	table *engine.Table
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the event logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithIDs replaces the query id generator.
func WithIDs(next func() string) Option {
	return func(s *Session) { s.newID = next }
}

// New creates a session. res may be nil, in which case Resolve always
// reports no match.
func New(tr *translator.Translator, ex *sandbox.Executor, res *resolver.Resolver, opts ...Option) *Session {
	s := &Session{translator: tr, executor: ex, resolver: res, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = eventlog.OrDefault(s.logger)
	return s
}

// ColumnHook adapts a column resolver for use inside expressions.
func ColumnHook(r *resolver.Resolver) expr.Resolver {
	return func(ctx context.Context, name string, columns []string) (string, bool) {
		res := r.Resolve(ctx, name, columns)
		return res.Column, res.Found
	}
}

// ============================================================================
// WORKBOOK STATE
// ============================================================================

// LoadWorkbook opens a file and focuses its first sheet.
func (s *Session) LoadWorkbook(path string) error {
	book, err := workbook.Open(path)
	if err != nil {
		return err
	}
	return s.useWorkbook(book)
}

// LoadWorkbookBytes is LoadWorkbook for an in-memory upload.
func (s *Session) LoadWorkbookBytes(name string, data []byte) error {
	book, err := workbook.OpenBytes(name, data)
	if err != nil {
		return err
	}
	return s.useWorkbook(book)
}

func (s *Session) useWorkbook(book *workbook.Workbook) error {
	names := book.SheetNames()
	if len(names) == 0 {
		return fmt.Errorf("%s: %w", book.Name(), workbook.ErrEmptySheet)
	}
	s.book, s.sheet, s.table = book, "", nil
	return s.LoadSheet(names[0])
}

// UseTable focuses an already built table, bypassing any workbook.
func (s *Session) UseTable(name string, t *engine.Table) {
	s.book, s.sheet, s.table = nil, name, t
}

// SheetNames lists the sheets of the loaded workbook.
func (s *Session) SheetNames() []string {
	if s.book == nil {
		return nil
	}
	return s.book.SheetNames()
}

// LoadSheet focuses a sheet of the loaded workbook.
func (s *Session) LoadSheet(name string) error {
	if s.book == nil {
		return errors.New("no workbook loaded")
	}
	t, err := s.book.Sheet(name)
	if err != nil {
		return err
	}
	s.sheet, s.table = name, t
	return nil
}

// Sheet returns the focused sheet name.
func (s *Session) Sheet() string { return s.sheet }

// Table returns the focused table, or nil.
func (s *Session) Table() *engine.Table { return s.table }

// Columns returns the focused table's column names.
func (s *Session) Columns() []string {
	if s.table == nil {
		return nil
	}
	return s.table.Columns()
}

// ============================================================================
// PIPELINE
// ============================================================================

// Run translates a request and executes the result against the focused
// sheet. Translation and execution failures end in a terminal state with a
// user-facing message; only an unknown category or a missing sheet are
// returned as errors.
func (s *Session) Run(ctx context.Context, category translator.Category, request string) (Outcome, error) {
	if !category.Valid() {
		return Outcome{}, fmt.Errorf("%w: %q", translator.ErrUnknownCategory, category)
	}
	if s.table == nil {
		return Outcome{}, ErrNoSheet
	}
	out := Outcome{ID: s.newID(), Category: category, Request: request}
	out.enter(Received)
	s.logger.Info(eventlog.QueryReceived,
		"id", out.ID,
		"category", string(category),
		"request", request,
		"sheet", s.sheet)

	out.enter(Translating)
	tr, err := s.translator.Translate(ctx, translator.Request{
		Category: category,
		Text:     request,
		Columns:  s.table.Columns(),
	})
	if err != nil {
		return Outcome{}, err
	}
	if tr.Absent() {
		out.enter(TranslationFailed)
		out.Err = tr.Err
		out.Message = MsgTranslationFailed
		return out, nil
	}
	out.enter(Translated)
	out.Expression = tr.Expression
	return s.execute(ctx, out), nil
}

// Execute runs an expression directly, skipping translation.
func (s *Session) Execute(ctx context.Context, expression string) (Outcome, error) {
	if s.table == nil {
		return Outcome{}, ErrNoSheet
	}
	out := Outcome{ID: s.newID(), Expression: expression}
	out.enter(Received)
	s.logger.Info(eventlog.QueryReceived,
		"id", out.ID,
		"expression", expression,
		"sheet", s.sheet)
	return s.execute(ctx, out), nil
}

func (s *Session) execute(ctx context.Context, out Outcome) Outcome {
	out.enter(Executing)
	res := s.executor.Execute(ctx, out.Expression, s.table)
	out.Elapsed, out.Cached, out.Slow = res.Elapsed, res.Cached, res.Slow
	if !res.OK() {
		out.enter(ExecutionFailed)
		out.Err = res.Err
		out.Message = MsgExecutionFailed
		return out
	}
	out.enter(Executed)
	out.Table = res.Table
	out.Message = timing(res.Elapsed, res.Slow, s.executor.SlowThreshold())
	return out
}

func timing(elapsed time.Duration, slow bool, threshold time.Duration) string {
	if slow {
		return fmt.Sprintf("Query took %.2f seconds (exceeds the %s target)", elapsed.Seconds(), threshold)
	}
	return fmt.Sprintf("Query executed in %.2f seconds", elapsed.Seconds())
}

// Resolve maps a free-form column reference onto the focused table.
func (s *Session) Resolve(ctx context.Context, header string) resolver.Result {
	if s.resolver == nil {
		return resolver.Result{Header: header, Method: resolver.MethodNone}
	}
	return s.resolver.Resolve(ctx, header, s.Columns())
}
