package expr

import (
	"fmt"
	"math"

	"github.com/spektr-org/sheetql/engine"
)

// ============================================================================
// RUNTIME VALUES
// ============================================================================
// A value is one of: engine.Value (scalar), *frame, *series, *grouped,
// accessor, locIndexer, method, builtin, list, tuple, dict or allRows.
// ============================================================================

type value any

type frame struct{ t *engine.Table }

// series is a column detached from its table. A series cut from df is
// row-aligned and has no index; a series produced by an aggregation carries
// its key columns as index.
type series struct {
	name  string
	vals  []engine.Value
	index []*engine.Column
}

type grouped struct {
	t      *engine.Table
	by     []string
	groups []engine.Group
	sel    []string // selected columns; nil means every non-key column
	single bool     // selected with one column name, reduces to a series
}

type accessor struct {
	name string // "str" or "dt"
	s    *series
}

type locIndexer struct{ f *frame }

type method struct {
	recv value
	name string
}

type builtin string

type list []value

type tuple []value

type dict struct {
	keys []value
	vals []value
}

type allRows struct{}

func typeName(v value) string {
	switch v.(type) {
	case engine.Value:
		return "scalar"
	case *frame:
		return "DataFrame"
	case *series:
		return "Series"
	case *grouped:
		return "GroupBy"
	case accessor:
		return "accessor"
	case locIndexer:
		return "indexer"
	case method, builtin:
		return "function"
	case list:
		return "list"
	case tuple:
		return "tuple"
	case dict:
		return "dict"
	case allRows:
		return "slice"
	}
	return fmt.Sprintf("%T", v)
}

func (s *series) len() int { return len(s.vals) }

func (s *series) kind() engine.Kind { return engine.NewColumn(s.name, s.vals).Kind }

// with returns a series sharing the receiver's name and index.
func (s *series) with(vals []engine.Value) *series {
	return &series{name: s.name, vals: vals, index: s.index}
}

func (s *series) take(rows []int) *series {
	vals := make([]engine.Value, len(rows))
	for i, r := range rows {
		vals[i] = s.vals[r]
	}
	var index []*engine.Column
	for _, c := range s.index {
		picked := make([]engine.Value, len(rows))
		for i, r := range rows {
			picked[i] = c.Values[r]
		}
		index = append(index, &engine.Column{Name: c.Name, Kind: c.Kind, Values: picked})
	}
	return &series{name: s.name, vals: vals, index: index}
}

func (s *series) column() *engine.Column { return engine.NewColumn(s.valueName(), s.vals) }

func (s *series) valueName() string {
	name := s.name
	if name == "" {
		name = resultName
	}
	for _, c := range s.index {
		if c.Name == name {
			return name + "_"
		}
	}
	return name
}

func (s *series) table() (*engine.Table, error) {
	cols := make([]*engine.Column, 0, len(s.index)+1)
	cols = append(cols, s.index...)
	cols = append(cols, s.column())
	return engine.NewTable(cols...)
}

// seriesOf lifts the last column of an aggregated table into a series
// indexed by its first keys columns.
func seriesOf(t *engine.Table, keys int, name string) *series {
	index := make([]*engine.Column, keys)
	for i := range index {
		index[i] = t.ColumnAt(i)
	}
	return &series{name: name, vals: t.ColumnAt(t.NumCols() - 1).Values, index: index}
}

func toTable(v value) (*engine.Table, error) {
	switch v := v.(type) {
	case *frame:
		return v.t, nil
	case *series:
		return v.table()
	case engine.Value:
		return engine.NewTable(engine.NewColumn(resultName, []engine.Value{v}))
	case list:
		return scalarsTable([]value(v))
	case tuple:
		return scalarsTable([]value(v))
	}
	return nil, fmt.Errorf("%w: expression produced a %s, not a table", ErrType, typeName(v))
}

func scalarsTable(items []value) (*engine.Table, error) {
	vals := make([]engine.Value, len(items))
	for i, it := range items {
		s, ok := it.(engine.Value)
		if !ok {
			return nil, fmt.Errorf("%w: list holds a %s", ErrType, typeName(it))
		}
		vals[i] = s
	}
	return engine.NewTable(engine.NewColumn(resultName, vals))
}

// ============================================================================
// ARGUMENTS
// ============================================================================

type args struct {
	pos   []value
	kw    map[string]value
	names []string // keyword names in call order
}

// get returns the i-th positional argument or the keyword argument name.
func (a *args) get(i int, name string) (value, bool) {
	if v, ok := a.kw[name]; ok {
		return v, true
	}
	if i >= 0 && i < len(a.pos) {
		return a.pos[i], true
	}
	return nil, false
}

// accept fails on surplus positional arguments or unknown keywords.
func (a *args) accept(fn string, params ...string) error {
	if len(a.pos) > len(params) {
		return fmt.Errorf("%w: %s takes at most %d positional arguments", ErrType, fn, len(params))
	}
	for _, k := range a.names {
		known := k == "numeric_only"
		for _, p := range params {
			if p == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %s got an unexpected keyword argument %q", ErrUnsupported, fn, k)
		}
	}
	return nil
}

func (a *args) intOr(i int, name string, def int) (int, error) {
	v, ok := a.get(i, name)
	if !ok {
		return def, nil
	}
	return asInt(v, name)
}

func (a *args) boolOr(i int, name string, def bool) (bool, error) {
	v, ok := a.get(i, name)
	if !ok {
		return def, nil
	}
	return asBool(v, name)
}

func (a *args) stringOr(i int, name, def string) (string, error) {
	v, ok := a.get(i, name)
	if !ok {
		return def, nil
	}
	return asString(v, name)
}

func asScalar(v value, what string) (engine.Value, error) {
	s, ok := v.(engine.Value)
	if !ok {
		return engine.Value{}, fmt.Errorf("%w: %s must be a scalar, got %s", ErrType, what, typeName(v))
	}
	return s, nil
}

func asString(v value, what string) (string, error) {
	s, ok := v.(engine.Value)
	if !ok || s.Kind != engine.KindString {
		return "", fmt.Errorf("%w: %s must be a string", ErrType, what)
	}
	return s.Str, nil
}

func asInt(v value, what string) (int, error) {
	s, ok := v.(engine.Value)
	if !ok || s.Kind != engine.KindNumber || s.Num != math.Trunc(s.Num) {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrType, what)
	}
	return int(s.Num), nil
}

func asBool(v value, what string) (bool, error) {
	s, ok := v.(engine.Value)
	if !ok || (s.Kind != engine.KindBool && s.Kind != engine.KindNumber) {
		return false, fmt.Errorf("%w: %s must be True or False", ErrType, what)
	}
	return s.Truthy(), nil
}

// items unpacks a list, tuple or series into its elements.
func items(v value) ([]value, bool) {
	switch v := v.(type) {
	case list:
		return v, true
	case tuple:
		return v, true
	case *series:
		out := make([]value, len(v.vals))
		for i, x := range v.vals {
			out[i] = x
		}
		return out, true
	}
	return nil, false
}

// asStrings accepts a single string or a sequence of strings.
func asStrings(v value, what string) ([]string, error) {
	if s, ok := v.(engine.Value); ok && s.Kind == engine.KindString {
		return []string{s.Str}, nil
	}
	elems, ok := items(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string or a list of strings", ErrType, what)
	}
	out := make([]string, len(elems))
	for i, e := range elems {
		s, err := asString(e, what)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func asScalars(v value, what string) ([]engine.Value, error) {
	elems, ok := items(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrType, what)
	}
	out := make([]engine.Value, len(elems))
	for i, e := range elems {
		s, err := asScalar(e, what)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// asMask reads a boolean series of length n.
func asMask(v value, n int) ([]bool, error) {
	s, ok := v.(*series)
	if !ok {
		return nil, fmt.Errorf("%w: expected a boolean Series, got %s", ErrType, typeName(v))
	}
	if s.len() != n {
		return nil, fmt.Errorf("%w: boolean mask has %d entries, frame has %d rows", ErrType, s.len(), n)
	}
	mask := make([]bool, n)
	for i, x := range s.vals {
		switch x.Kind {
		case engine.KindBool:
			mask[i] = x.Bool
		case engine.KindNull:
		default:
			return nil, fmt.Errorf("%w: cannot index with a non-boolean Series", ErrType)
		}
	}
	return mask, nil
}

func maskRows(mask []bool) []int {
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return rows
}

// sliceBounds applies Python slice semantics to a length.
func sliceBounds(lo, hi *int, n int) (int, int) {
	norm := func(p *int, def int) int {
		if p == nil {
			return def
		}
		i := *p
		if i < 0 {
			i += n
		}
		return max(0, min(i, n))
	}
	from, to := norm(lo, 0), norm(hi, n)
	if to < from {
		to = from
	}
	return from, to
}
