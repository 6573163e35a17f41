// Package expr evaluates single pandas-style expressions against an
// engine.Table.
//
// Source text is parsed with the Starlark parser as the statement
// `result = <expression>` and the right-hand side is walked by a small
// interpreter that knows a closed set of DataFrame, Series and GroupBy
// operations. Nothing is executed that the interpreter does not implement:
// the only name in scope is df, there are no imports, no attribute access
// beyond the known methods, and no user-defined functions.
package expr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/syntax"

	"github.com/spektr-org/sheetql/engine"
)

// Binding is the name the table is bound to inside an expression.
const Binding = "df"

const (
	resultName  = "result"
	prefix      = resultName + " = "
	allRowsName = "__all__"
)

var (
	// ErrSyntax wraps every parse failure.
	ErrSyntax = errors.New("syntax error")
	// ErrNotExpression is returned when the text is not a single expression.
	ErrNotExpression = errors.New("not a single expression")
	// ErrUndefined is returned for any name other than df.
	ErrUndefined = errors.New("undefined name")
	// ErrUnsupported is returned for syntax or methods outside the grammar.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrType is returned when an operand has the wrong shape or kind.
	ErrType = errors.New("type error")
)

// Error is a failure at a position of the expression text. Line and column
// are relative to the expression as given, not the wrapping assignment.
type Error struct {
	Pos syntax.Position
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver maps a column reference the table lacks onto one it has.
type Resolver func(ctx context.Context, name string, columns []string) (string, bool)

// Option configures evaluation.
type Option func(*interp)

// WithResolver offers unknown column names to r before failing.
func WithResolver(r Resolver) Option {
	return func(in *interp) { in.resolve = r }
}

// Program is a parsed expression, reusable across tables.
type Program struct {
	src string
	rhs syntax.Expr
}

// `df.loc[:, cols]` is not valid Starlark; the bare slice becomes a marker.
var locAll = regexp.MustCompile(`^\[\s*:\s*,`)

// markAllRows rewrites every `[:,` that sits outside a string literal.
func markAllRows(src string) string {
	var b strings.Builder
	b.Grow(len(src))
	var quote byte // opening quote character while inside a literal
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '[':
			if m := locAll.FindString(src[i:]); m != "" {
				b.WriteString("[" + allRowsName + ",")
				i += len(m) - 1
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Compile parses an expression.
func Compile(src string) (*Program, error) {
	text := strings.TrimSpace(src)
	if text == "" {
		return nil, &Error{Msg: "empty expression", Err: ErrNotExpression}
	}
	text = markAllRows(text)

	f, err := (&syntax.FileOptions{}).Parse("expression", prefix+text, 0)
	if err != nil {
		return nil, syntaxError(err, int32(len(prefix)))
	}
	if len(f.Stmts) != 1 {
		return nil, &Error{Msg: "expected exactly one expression", Err: ErrNotExpression}
	}
	assign, ok := f.Stmts[0].(*syntax.AssignStmt)
	if !ok || assign.Op != syntax.EQ {
		return nil, &Error{Msg: "expected an expression", Err: ErrNotExpression}
	}
	if id, ok := assign.LHS.(*syntax.Ident); !ok || id.Name != resultName {
		return nil, &Error{Msg: "expected an expression", Err: ErrNotExpression}
	}
	return &Program{src: src, rhs: assign.RHS}, nil
}

// Source returns the text the program was compiled from.
func (p *Program) Source() string { return p.src }

// Eval runs the program with df bound to t. Frames come back as-is, a
// Series becomes its index columns plus one value column, and a scalar
// becomes a one-cell table with a single "result" column.
func (p *Program) Eval(ctx context.Context, t *engine.Table, opts ...Option) (*engine.Table, error) {
	in := newInterp(ctx, t, int32(len(prefix)), opts)
	v, err := in.eval(p.rhs)
	if err != nil {
		return nil, err
	}
	out, err := toTable(v)
	if err != nil {
		start, _ := p.rhs.Span()
		return nil, &Error{Pos: in.position(start), Msg: err.Error(), Err: err}
	}
	return out, nil
}

// Eval compiles and runs src in one step.
func Eval(ctx context.Context, src string, t *engine.Table, opts ...Option) (*engine.Table, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return p.Eval(ctx, t, opts...)
}

// Query filters t by a df.query-style condition, where bare names and
// backquoted names refer to columns.
func Query(ctx context.Context, t *engine.Table, cond string, opts ...Option) (*engine.Table, error) {
	in := newInterp(ctx, t, 0, opts)
	v, err := in.query(in.df, cond)
	if err != nil {
		return nil, err
	}
	return v.t, nil
}

func syntaxError(err error, offset int32) error {
	var se syntax.Error
	if errors.As(err, &se) {
		return &Error{Pos: shift(se.Pos, offset), Msg: se.Msg, Err: ErrSyntax}
	}
	return &Error{Msg: err.Error(), Err: ErrSyntax}
}

func shift(p syntax.Position, offset int32) syntax.Position {
	if p.Line == 1 && p.Col > offset {
		p.Col -= offset
	}
	return p
}
