package expr

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"go.starlark.net/syntax"

	"github.com/spektr-org/sheetql/engine"
)

type interp struct {
	ctx     context.Context
	df      *frame
	resolve Resolver
	offset  int32 // columns added on line 1 by the wrapping assignment

	// query mode: bare names are columns of scope
	scope  *frame
	quoted map[string]string
}

func newInterp(ctx context.Context, t *engine.Table, offset int32, opts []Option) *interp {
	in := &interp{ctx: ctx, df: &frame{t: t}, offset: offset}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *interp) position(p syntax.Position) syntax.Position { return shift(p, in.offset) }

// eval evaluates one node and attaches its position to any plain error.
func (in *interp) eval(e syntax.Expr) (value, error) {
	if err := in.ctx.Err(); err != nil {
		return nil, err
	}
	v, err := in.node(e)
	if err != nil {
		var xe *Error
		if errors.As(err, &xe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		start, _ := e.Span()
		return nil, &Error{Pos: in.position(start), Msg: err.Error(), Err: err}
	}
	return v, nil
}

func (in *interp) node(e syntax.Expr) (value, error) {
	switch e := e.(type) {
	case *syntax.Ident:
		return in.ident(e)
	case *syntax.Literal:
		return literal(e)
	case *syntax.ParenExpr:
		return in.eval(e.X)
	case *syntax.ListExpr:
		vals, err := in.evalAll(e.List)
		return list(vals), err
	case *syntax.TupleExpr:
		vals, err := in.evalAll(e.List)
		return tuple(vals), err
	case *syntax.DictExpr:
		return in.dict(e)
	case *syntax.UnaryExpr:
		return in.unary(e)
	case *syntax.BinaryExpr:
		return in.binary(e)
	case *syntax.DotExpr:
		return in.attr(e)
	case *syntax.IndexExpr:
		return in.index(e)
	case *syntax.SliceExpr:
		return in.slice(e)
	case *syntax.CallExpr:
		return in.call(e)
	}
	return nil, fmt.Errorf("%w: %T is not allowed", ErrUnsupported, e)
}

func (in *interp) evalAll(exprs []syntax.Expr) ([]value, error) {
	out := make([]value, len(exprs))
	for i, x := range exprs {
		v, err := in.eval(x)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *interp) ident(id *syntax.Ident) (value, error) {
	switch id.Name {
	case "True":
		return engine.Boolean(true), nil
	case "False":
		return engine.Boolean(false), nil
	case "None":
		return engine.Null(), nil
	case allRowsName:
		return allRows{}, nil
	}
	if in.scope != nil {
		name := id.Name
		if q, ok := in.quoted[name]; ok {
			name = q
		}
		return in.column(in.scope, name)
	}
	switch id.Name {
	case Binding:
		return in.df, nil
	case "len", "abs", "round":
		return builtin(id.Name), nil
	}
	return nil, fmt.Errorf("%w: name %q is not defined", ErrUndefined, id.Name)
}

func literal(l *syntax.Literal) (value, error) {
	switch v := l.Value.(type) {
	case string:
		return engine.Str(v), nil
	case int64:
		return engine.Num(float64(v)), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(v).Float64()
		return engine.Num(f), nil
	case float64:
		return engine.Num(v), nil
	}
	return nil, fmt.Errorf("%w: literal %s", ErrUnsupported, l.Raw)
}

func (in *interp) dict(e *syntax.DictExpr) (value, error) {
	var d dict
	for _, item := range e.List {
		entry, ok := item.(*syntax.DictEntry)
		if !ok {
			return nil, fmt.Errorf("%w: malformed dict", ErrUnsupported)
		}
		k, err := in.eval(entry.Key)
		if err != nil {
			return nil, err
		}
		if _, ok := k.(engine.Value); !ok {
			return nil, fmt.Errorf("%w: dict keys must be scalars", ErrType)
		}
		v, err := in.eval(entry.Value)
		if err != nil {
			return nil, err
		}
		d.keys = append(d.keys, k)
		d.vals = append(d.vals, v)
	}
	return d, nil
}

// ============================================================================
// COLUMN LOOKUP
// ============================================================================

// columnName returns name when f has it, otherwise the resolver's answer.
func (in *interp) columnName(f *frame, name string) (string, error) {
	if _, ok := f.t.Column(name); ok {
		return name, nil
	}
	if in.resolve != nil {
		if alt, ok := in.resolve(in.ctx, name, f.t.Columns()); ok {
			if _, exists := f.t.Column(alt); exists {
				return alt, nil
			}
		}
	}
	return "", &engine.ColumnError{Name: name, Available: f.t.Columns()}
}

func (in *interp) columnNames(f *frame, names []string) ([]string, error) {
	out := make([]string, len(names))
	for i, n := range names {
		c, err := in.columnName(f, n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (in *interp) column(f *frame, name string) (*series, error) {
	resolved, err := in.columnName(f, name)
	if err != nil {
		return nil, err
	}
	c, _ := f.t.Column(resolved)
	return &series{name: c.Name, vals: c.Values}, nil
}

// ============================================================================
// ATTRIBUTES, CALLS, INDEXING
// ============================================================================

func (in *interp) attr(e *syntax.DotExpr) (value, error) {
	x, err := in.eval(e.X)
	if err != nil {
		return nil, err
	}
	name := e.Name.Name
	switch x := x.(type) {
	case *frame:
		switch {
		case name == "loc":
			return locIndexer{f: x}, nil
		case name == "columns":
			cols := x.t.Columns()
			out := make(list, len(cols))
			for i, c := range cols {
				out[i] = engine.Str(c)
			}
			return out, nil
		case name == "shape":
			return tuple{engine.Num(float64(x.t.NumRows())), engine.Num(float64(x.t.NumCols()))}, nil
		case name == "empty":
			return engine.Boolean(x.t.NumRows() == 0), nil
		case frameMethods[name]:
			return method{recv: x, name: name}, nil
		}
		return in.column(x, name)
	case *series:
		switch {
		case name == "str" || name == "dt":
			return accessor{name: name, s: x}, nil
		case name == "name":
			return engine.Str(x.name), nil
		case name == "size":
			return engine.Num(float64(x.len())), nil
		case name == "empty":
			return engine.Boolean(x.len() == 0), nil
		case seriesMethods[name]:
			return method{recv: x, name: name}, nil
		}
	case *grouped:
		if groupMethods[name] {
			return method{recv: x, name: name}, nil
		}
		return in.groupSelect(x, engine.Str(name))
	case accessor:
		if x.name == "dt" {
			return datePart(x.s, name)
		}
		if strMethods[name] {
			return method{recv: x, name: name}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no attribute %q", ErrUnsupported, typeName(x), name)
}

func (in *interp) call(e *syntax.CallExpr) (value, error) {
	fn, err := in.eval(e.Fn)
	if err != nil {
		return nil, err
	}
	a, err := in.args(e.Args)
	if err != nil {
		return nil, err
	}
	switch fn := fn.(type) {
	case method:
		switch recv := fn.recv.(type) {
		case *frame:
			return in.frameCall(recv, fn.name, a)
		case *series:
			return in.seriesCall(recv, fn.name, a)
		case *grouped:
			return in.groupCall(recv, fn.name, a)
		case accessor:
			return strCall(recv.s, fn.name, a)
		}
	case builtin:
		return builtinCall(string(fn), a)
	}
	return nil, fmt.Errorf("%w: %s is not callable", ErrType, typeName(fn))
}

func (in *interp) args(exprs []syntax.Expr) (*args, error) {
	a := &args{kw: make(map[string]value)}
	for _, x := range exprs {
		if b, ok := x.(*syntax.BinaryExpr); ok && b.Op == syntax.EQ {
			id, ok := b.X.(*syntax.Ident)
			if !ok {
				return nil, fmt.Errorf("%w: malformed keyword argument", ErrUnsupported)
			}
			v, err := in.eval(b.Y)
			if err != nil {
				return nil, err
			}
			if _, dup := a.kw[id.Name]; dup {
				return nil, fmt.Errorf("%w: keyword argument %q repeated", ErrType, id.Name)
			}
			a.kw[id.Name] = v
			a.names = append(a.names, id.Name)
			continue
		}
		if u, ok := x.(*syntax.UnaryExpr); ok && (u.Op == syntax.STAR || u.Op == syntax.STARSTAR) {
			return nil, fmt.Errorf("%w: argument unpacking", ErrUnsupported)
		}
		if len(a.names) > 0 {
			return nil, fmt.Errorf("%w: positional argument follows keyword argument", ErrType)
		}
		v, err := in.eval(x)
		if err != nil {
			return nil, err
		}
		a.pos = append(a.pos, v)
	}
	return a, nil
}

func builtinCall(name string, a *args) (value, error) {
	if err := a.accept(name, "x", "ndigits"); err != nil {
		return nil, err
	}
	x, ok := a.get(0, "x")
	if !ok {
		return nil, fmt.Errorf("%w: %s needs an argument", ErrType, name)
	}
	switch name {
	case "len":
		switch x := x.(type) {
		case *frame:
			return engine.Num(float64(x.t.NumRows())), nil
		case *series:
			return engine.Num(float64(x.len())), nil
		case engine.Value:
			if x.Kind == engine.KindString {
				return engine.Num(float64(len([]rune(x.Str)))), nil
			}
		default:
			if elems, ok := items(x); ok {
				return engine.Num(float64(len(elems))), nil
			}
		}
		return nil, fmt.Errorf("%w: %s has no len()", ErrType, typeName(x))
	case "abs":
		return mapNumeric(x, absFloat)
	default:
		digits, err := a.intOr(1, "ndigits", 0)
		if err != nil {
			return nil, err
		}
		return mapNumeric(x, func(f float64) float64 { return engine.RoundTo(f, digits) })
	}
}

func (in *interp) index(e *syntax.IndexExpr) (value, error) {
	x, err := in.eval(e.X)
	if err != nil {
		return nil, err
	}
	if loc, ok := x.(locIndexer); ok {
		return in.loc(loc.f, e.Y)
	}
	y, err := in.eval(e.Y)
	if err != nil {
		return nil, err
	}
	switch x := x.(type) {
	case *frame:
		return in.frameIndex(x, y)
	case *series:
		return seriesIndex(x, y)
	case *grouped:
		return in.groupSelect(x, y)
	case list, tuple:
		elems, _ := items(x)
		i, err := asInt(y, "index")
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i += len(elems)
		}
		if i < 0 || i >= len(elems) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrType, i)
		}
		return elems[i], nil
	}
	return nil, fmt.Errorf("%w: %s is not subscriptable", ErrType, typeName(x))
}

func (in *interp) frameIndex(f *frame, y value) (value, error) {
	switch y := y.(type) {
	case engine.Value:
		if y.Kind != engine.KindString {
			return nil, fmt.Errorf("%w: column key must be a string", ErrType)
		}
		return in.column(f, y.Str)
	case list, tuple:
		names, err := asStrings(y, "column list")
		if err != nil {
			return nil, err
		}
		if names, err = in.columnNames(f, names); err != nil {
			return nil, err
		}
		t, err := f.t.Select(names...)
		if err != nil {
			return nil, err
		}
		return &frame{t: t}, nil
	case *series:
		mask, err := asMask(y, f.t.NumRows())
		if err != nil {
			return nil, err
		}
		return &frame{t: f.t.Take(maskRows(mask))}, nil
	}
	return nil, fmt.Errorf("%w: cannot index a DataFrame with %s", ErrType, typeName(y))
}

func seriesIndex(s *series, y value) (value, error) {
	switch y := y.(type) {
	case *series:
		mask, err := asMask(y, s.len())
		if err != nil {
			return nil, err
		}
		return s.take(maskRows(mask)), nil
	case engine.Value:
		if len(s.index) == 1 {
			for i, k := range s.index[0].Values {
				if k.Equal(y) {
					return s.vals[i], nil
				}
			}
			return nil, fmt.Errorf("%w: label %q not in index", ErrType, y.String())
		}
		i, err := asInt(y, "position")
		if err != nil {
			return nil, err
		}
		if i < 0 {
			i += s.len()
		}
		if i < 0 || i >= s.len() {
			return nil, fmt.Errorf("%w: position %d out of range", ErrType, i)
		}
		return s.vals[i], nil
	}
	return nil, fmt.Errorf("%w: cannot index a Series with %s", ErrType, typeName(y))
}

func (in *interp) slice(e *syntax.SliceExpr) (value, error) {
	if e.Step != nil {
		return nil, fmt.Errorf("%w: slice step", ErrUnsupported)
	}
	x, err := in.eval(e.X)
	if err != nil {
		return nil, err
	}
	bound := func(b syntax.Expr) (*int, error) {
		if b == nil {
			return nil, nil
		}
		v, err := in.eval(b)
		if err != nil {
			return nil, err
		}
		i, err := asInt(v, "slice bound")
		return &i, err
	}
	lo, err := bound(e.Lo)
	if err != nil {
		return nil, err
	}
	hi, err := bound(e.Hi)
	if err != nil {
		return nil, err
	}

	switch x := x.(type) {
	case *frame:
		from, to := sliceBounds(lo, hi, x.t.NumRows())
		return &frame{t: x.t.Take(positions(from, to))}, nil
	case *series:
		from, to := sliceBounds(lo, hi, x.len())
		return x.take(positions(from, to)), nil
	case list, tuple:
		elems, _ := items(x)
		from, to := sliceBounds(lo, hi, len(elems))
		return list(elems[from:to]), nil
	}
	return nil, fmt.Errorf("%w: cannot slice %s", ErrType, typeName(x))
}

func positions(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// loc handles df.loc[rows] and df.loc[rows, cols].
func (in *interp) loc(f *frame, key syntax.Expr) (value, error) {
	rowExpr, colExpr := key, syntax.Expr(nil)
	if t, ok := key.(*syntax.TupleExpr); ok {
		if len(t.List) != 2 {
			return nil, fmt.Errorf("%w: .loc takes [rows] or [rows, columns]", ErrType)
		}
		rowExpr, colExpr = t.List[0], t.List[1]
	}
	r, err := in.eval(rowExpr)
	if err != nil {
		return nil, err
	}

	rows := f
	single := false
	switch r := r.(type) {
	case allRows:
	case *series:
		mask, err := asMask(r, f.t.NumRows())
		if err != nil {
			return nil, err
		}
		rows = &frame{t: f.t.Take(maskRows(mask))}
	case engine.Value:
		i, err := asInt(r, "row label")
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= f.t.NumRows() {
			return nil, fmt.Errorf("%w: row %d out of range", ErrType, i)
		}
		rows = &frame{t: f.t.Take([]int{i})}
		single = true
	case list, tuple:
		elems, _ := items(r)
		picks := make([]int, len(elems))
		for j, el := range elems {
			i, err := asInt(el, "row label")
			if err != nil {
				return nil, err
			}
			if i < 0 || i >= f.t.NumRows() {
				return nil, fmt.Errorf("%w: row %d out of range", ErrType, i)
			}
			picks[j] = i
		}
		rows = &frame{t: f.t.Take(picks)}
	default:
		return nil, fmt.Errorf("%w: cannot select rows with %s", ErrType, typeName(r))
	}
	if colExpr == nil {
		return rows, nil
	}

	c, err := in.eval(colExpr)
	if err != nil {
		return nil, err
	}
	if s, ok := c.(engine.Value); ok && s.Kind == engine.KindString {
		col, err := in.column(rows, s.Str)
		if err != nil {
			return nil, err
		}
		if single {
			return col.vals[0], nil
		}
		return col, nil
	}
	return in.frameIndex(rows, c)
}

// ============================================================================
// QUERY
// ============================================================================

var backquoted = regexp.MustCompile("`([^`]*)`")

// query evaluates a df.query condition in a child interpreter whose bare
// names are columns of f.
func (in *interp) query(f *frame, cond string) (*frame, error) {
	quoted := make(map[string]string)
	text := backquoted.ReplaceAllStringFunc(cond, func(m string) string {
		id := fmt.Sprintf("__q%d__", len(quoted))
		quoted[id] = m[1 : len(m)-1]
		return id
	})
	e, err := (&syntax.FileOptions{}).ParseExpr("query", text, 0)
	if err != nil {
		return nil, syntaxError(err, 0)
	}
	sub := &interp{ctx: in.ctx, df: in.df, resolve: in.resolve, scope: f, quoted: quoted}
	v, err := sub.eval(e)
	if err != nil {
		return nil, err
	}
	mask, err := asMask(v, f.t.NumRows())
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", cond, err)
	}
	return &frame{t: f.t.Take(maskRows(mask))}, nil
}
