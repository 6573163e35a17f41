package expr

import (
	"fmt"
	"math"

	"go.starlark.net/syntax"

	"github.com/spektr-org/sheetql/engine"
	"github.com/spektr-org/sheetql/schema"
)

// ============================================================================
// OPERATORS: element-wise over Series, plain over scalars
// ============================================================================
// Null follows NaN rules: every comparison with null is false except !=,
// arithmetic with null is null, and null is false in a boolean mask.
// ============================================================================

func (in *interp) unary(e *syntax.UnaryExpr) (value, error) {
	x, err := in.eval(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case syntax.MINUS:
		return mapNumeric(x, func(f float64) float64 { return -f })
	case syntax.PLUS:
		return mapNumeric(x, func(f float64) float64 { return f })
	case syntax.TILDE, syntax.NOT:
		return mapValues(x, func(v engine.Value) (engine.Value, error) {
			return engine.Boolean(!v.Truthy()), nil
		})
	}
	return nil, fmt.Errorf("%w: unary %s", ErrUnsupported, e.Op)
}

func (in *interp) binary(e *syntax.BinaryExpr) (value, error) {
	x, err := in.eval(e.X)
	if err != nil {
		return nil, err
	}
	y, err := in.eval(e.Y)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case syntax.AND, syntax.AMP:
		return logical(x, y, func(a, b bool) bool { return a && b })
	case syntax.OR, syntax.PIPE:
		return logical(x, y, func(a, b bool) bool { return a || b })
	case syntax.CIRCUMFLEX:
		return logical(x, y, func(a, b bool) bool { return a != b })
	case syntax.EQL, syntax.NEQ, syntax.LT, syntax.GT, syntax.LE, syntax.GE:
		return compare(e.Op, x, y)
	case syntax.IN, syntax.NOT_IN:
		return membership(x, y, e.Op == syntax.NOT_IN)
	case syntax.PLUS, syntax.MINUS, syntax.STAR, syntax.SLASH, syntax.SLASHSLASH, syntax.PERCENT:
		return combine(x, y, func(a, b engine.Value) (engine.Value, error) {
			return arith(e.Op, a, b)
		})
	}
	return nil, fmt.Errorf("%w: operator %s", ErrUnsupported, e.Op)
}

// combine applies fn pairwise, broadcasting a scalar against a Series.
// The result takes the name and index of the first Series operand.
func combine(x, y value, fn func(a, b engine.Value) (engine.Value, error)) (value, error) {
	xs, xok := x.(*series)
	ys, yok := y.(*series)
	if !xok && !yok {
		a, err := asScalar(x, "left operand")
		if err != nil {
			return nil, err
		}
		b, err := asScalar(y, "right operand")
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}

	like := xs
	if !xok {
		like = ys
	}
	n := like.len()
	left, err := operand(x, n)
	if err != nil {
		return nil, err
	}
	right, err := operand(y, n)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Value, n)
	for i := range out {
		v, err := fn(left(i), right(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return like.with(out), nil
}

func operand(v value, n int) (func(int) engine.Value, error) {
	switch v := v.(type) {
	case *series:
		if v.len() != n {
			return nil, fmt.Errorf("%w: Series lengths differ (%d vs %d)", ErrType, v.len(), n)
		}
		return func(i int) engine.Value { return v.vals[i] }, nil
	case engine.Value:
		return func(int) engine.Value { return v }, nil
	}
	return nil, fmt.Errorf("%w: unsupported operand %s", ErrType, typeName(v))
}

func mapValues(x value, fn func(engine.Value) (engine.Value, error)) (value, error) {
	switch x := x.(type) {
	case engine.Value:
		return fn(x)
	case *series:
		out := make([]engine.Value, x.len())
		for i, v := range x.vals {
			r, err := fn(v)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return x.with(out), nil
	}
	return nil, fmt.Errorf("%w: unsupported operand %s", ErrType, typeName(x))
}

func mapNumeric(x value, fn func(float64) float64) (value, error) {
	return mapValues(x, func(v engine.Value) (engine.Value, error) {
		if v.IsNull() {
			return v, nil
		}
		f, ok := v.Float()
		if !ok {
			return engine.Value{}, fmt.Errorf("%w: expected a number, got %s", ErrType, v.Kind)
		}
		return engine.Num(fn(f)), nil
	})
}

func absFloat(f float64) float64 { return math.Abs(f) }

func logical(x, y value, fn func(a, b bool) bool) (value, error) {
	return combine(x, y, func(a, b engine.Value) (engine.Value, error) {
		return engine.Boolean(fn(a.Truthy(), b.Truthy())), nil
	})
}

func compare(op syntax.Token, x, y value) (value, error) {
	// In a query, `col == ['a', 'b']` means membership.
	if _, ok := x.(*series); ok && (op == syntax.EQL || op == syntax.NEQ) {
		switch y.(type) {
		case list, tuple:
			return membership(x, y, op == syntax.NEQ)
		}
	}
	return combine(x, y, func(a, b engine.Value) (engine.Value, error) {
		ok, err := compareValues(op, a, b)
		return engine.Boolean(ok), err
	})
}

func compareValues(op syntax.Token, a, b engine.Value) (bool, error) {
	if a.IsNull() || b.IsNull() {
		return op == syntax.NEQ, nil
	}
	a, b = coerceTime(a, b)
	switch op {
	case syntax.EQL:
		return a.Equal(b), nil
	case syntax.NEQ:
		return !a.Equal(b), nil
	}
	c, err := engine.Compare(a, b)
	if err != nil {
		return false, fmt.Errorf("%w: %s %s %s: %v", ErrType, a.Kind, op, b.Kind, err)
	}
	switch op {
	case syntax.LT:
		return c < 0, nil
	case syntax.GT:
		return c > 0, nil
	case syntax.LE:
		return c <= 0, nil
	default:
		return c >= 0, nil
	}
}

// coerceTime reads a string operand as a date when the other side is one,
// so df['Date'] >= '2024-01-01' compares dates.
func coerceTime(a, b engine.Value) (engine.Value, engine.Value) {
	if a.Kind == engine.KindTime && b.Kind == engine.KindString {
		if t, ok := schema.ParseTime(b.Str); ok {
			b = engine.Timestamp(t)
		}
	}
	if b.Kind == engine.KindTime && a.Kind == engine.KindString {
		if t, ok := schema.ParseTime(a.Str); ok {
			a = engine.Timestamp(t)
		}
	}
	return a, b
}

func membership(x, y value, negate bool) (value, error) {
	allowed, err := asScalars(y, "right operand of in")
	if err != nil {
		return nil, err
	}
	pred := isIn(allowed)
	return mapValues(x, func(v engine.Value) (engine.Value, error) {
		return engine.Boolean(pred(v) != negate), nil
	})
}

// isIn matches cells against allowed values, reading strings as dates
// when compared with date cells.
func isIn(allowed []engine.Value) func(engine.Value) bool {
	exact := engine.In(allowed, false)
	return func(v engine.Value) bool {
		if v.Kind != engine.KindTime {
			return exact(v)
		}
		for _, a := range allowed {
			if x, y := coerceTime(v, a); x.Equal(y) {
				return true
			}
		}
		return false
	}
}

func arith(op syntax.Token, a, b engine.Value) (engine.Value, error) {
	if a.IsNull() || b.IsNull() {
		return engine.Null(), nil
	}
	if op == syntax.PLUS && a.Kind == engine.KindString && b.Kind == engine.KindString {
		return engine.Str(a.Str + b.Str), nil
	}
	x, xok := a.Float()
	y, yok := b.Float()
	if !xok || !yok {
		return engine.Value{}, fmt.Errorf("%w: unsupported operand kinds for %s: %s and %s", ErrType, op, a.Kind, b.Kind)
	}
	switch op {
	case syntax.PLUS:
		return engine.Num(x + y), nil
	case syntax.MINUS:
		return engine.Num(x - y), nil
	case syntax.STAR:
		return engine.Num(x * y), nil
	case syntax.SLASH:
		return engine.Num(x / y), nil
	case syntax.SLASHSLASH:
		return engine.Num(math.Floor(x / y)), nil
	default:
		r := math.Mod(x, y)
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return engine.Num(r), nil
	}
}
