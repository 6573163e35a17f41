package expr

import (
	"fmt"

	"github.com/spektr-org/sheetql/engine"
)

var frameMethods = map[string]bool{
	"head": true, "tail": true, "sort_values": true, "nlargest": true, "nsmallest": true,
	"groupby": true, "pivot_table": true, "query": true, "reset_index": true,
	"drop_duplicates": true, "fillna": true, "dropna": true, "rename": true, "copy": true,
	"sum": true, "mean": true, "median": true, "min": true, "max": true,
	"count": true, "nunique": true, "std": true,
}

func (in *interp) frameCall(f *frame, name string, a *args) (value, error) {
	switch name {
	case "head", "tail":
		if err := a.accept(name, "n"); err != nil {
			return nil, err
		}
		n, err := a.intOr(0, "n", 5)
		if err != nil {
			return nil, err
		}
		if name == "head" {
			return &frame{t: f.t.Head(n)}, nil
		}
		return &frame{t: f.t.Tail(n)}, nil

	case "sort_values":
		if err := a.accept(name, "by", "ascending", "na_position", "kind"); err != nil {
			return nil, err
		}
		by, ok := a.get(0, "by")
		if !ok {
			return nil, fmt.Errorf("%w: sort_values needs by", ErrType)
		}
		cols, err := asStrings(by, "by")
		if err != nil {
			return nil, err
		}
		if cols, err = in.columnNames(f, cols); err != nil {
			return nil, err
		}
		asc, err := ascending(a, 1, len(cols))
		if err != nil {
			return nil, err
		}
		keys := make([]engine.SortKey, len(cols))
		for i, c := range cols {
			keys[i] = engine.SortKey{Column: c, Descending: !asc[i]}
		}
		t, err := f.t.Sort(keys...)
		if err != nil {
			return nil, err
		}
		return &frame{t: t}, nil

	case "nlargest", "nsmallest":
		if err := a.accept(name, "n", "columns", "keep"); err != nil {
			return nil, err
		}
		n, err := a.intOr(0, "n", 5)
		if err != nil {
			return nil, err
		}
		by, ok := a.get(1, "columns")
		if !ok {
			return nil, fmt.Errorf("%w: %s needs columns", ErrType, name)
		}
		cols, err := asStrings(by, "columns")
		if err != nil {
			return nil, err
		}
		if cols, err = in.columnNames(f, cols); err != nil {
			return nil, err
		}
		keys := make([]engine.SortKey, len(cols))
		for i, c := range cols {
			keys[i] = engine.SortKey{Column: c, Descending: name == "nlargest"}
		}
		t, err := f.t.Sort(keys...)
		if err != nil {
			return nil, err
		}
		return &frame{t: t.Head(n)}, nil

	case "groupby":
		if err := a.accept(name, "by", "as_index", "sort", "dropna"); err != nil {
			return nil, err
		}
		by, ok := a.get(0, "by")
		if !ok {
			return nil, fmt.Errorf("%w: groupby needs by", ErrType)
		}
		cols, err := asStrings(by, "by")
		if err != nil {
			return nil, err
		}
		if cols, err = in.columnNames(f, cols); err != nil {
			return nil, err
		}
		groups, err := f.t.GroupBy(cols...)
		if err != nil {
			return nil, err
		}
		return &grouped{t: f.t, by: cols, groups: groups}, nil

	case "pivot_table":
		return in.pivot(f, a)

	case "query":
		if err := a.accept(name, "expr"); err != nil {
			return nil, err
		}
		v, ok := a.get(0, "expr")
		if !ok {
			return nil, fmt.Errorf("%w: query needs a condition", ErrType)
		}
		cond, err := asString(v, "expr")
		if err != nil {
			return nil, err
		}
		return in.query(f, cond)

	case "reset_index":
		if err := a.accept(name, "drop"); err != nil {
			return nil, err
		}
		return f, nil

	case "copy":
		if err := a.accept(name, "deep"); err != nil {
			return nil, err
		}
		return &frame{t: f.t.Clone()}, nil

	case "drop_duplicates":
		if err := a.accept(name, "subset", "keep"); err != nil {
			return nil, err
		}
		if keep, err := a.stringOr(1, "keep", "first"); err != nil || keep != "first" {
			return nil, fmt.Errorf("%w: drop_duplicates supports keep='first' only", ErrUnsupported)
		}
		var subset []string
		if v, ok := a.get(0, "subset"); ok && !isNone(v) {
			cols, err := asStrings(v, "subset")
			if err != nil {
				return nil, err
			}
			if subset, err = in.columnNames(f, cols); err != nil {
				return nil, err
			}
		}
		t, err := f.t.DropDuplicates(subset...)
		if err != nil {
			return nil, err
		}
		return &frame{t: t}, nil

	case "fillna":
		return in.fillna(f, a)

	case "dropna":
		return in.dropna(f, a)

	case "rename":
		if err := a.accept(name, "columns"); err != nil {
			return nil, err
		}
		v, ok := a.kw["columns"]
		if !ok {
			return nil, fmt.Errorf("%w: rename needs columns={...}", ErrType)
		}
		d, ok := v.(dict)
		if !ok {
			return nil, fmt.Errorf("%w: columns must be a dict", ErrType)
		}
		names := make(map[string]string, len(d.keys))
		for i := range d.keys {
			from, err := asString(d.keys[i], "column name")
			if err != nil {
				return nil, err
			}
			to, err := asString(d.vals[i], "column name")
			if err != nil {
				return nil, err
			}
			names[from] = to
		}
		t, err := f.t.Rename(names)
		if err != nil {
			return nil, err
		}
		return &frame{t: t}, nil
	}

	fn, err := engine.ParseAggFunc(name)
	if err != nil {
		return nil, fmt.Errorf("%w: DataFrame.%s", ErrUnsupported, name)
	}
	if err := a.accept(name); err != nil {
		return nil, err
	}
	cols := reducible(f.t, fn, nil)
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no columns to %s", ErrType, name)
	}
	t, err := f.t.ReduceColumns(fn, cols...)
	if err != nil {
		return nil, err
	}
	return seriesOf(t, 1, string(fn)), nil
}

// ascending reads ascending= as one flag or one flag per sort key.
func ascending(a *args, i, n int) ([]bool, error) {
	out := make([]bool, n)
	for j := range out {
		out[j] = true
	}
	v, ok := a.get(i, "ascending")
	if !ok {
		return out, nil
	}
	if elems, isSeq := items(v); isSeq {
		if len(elems) != n {
			return nil, fmt.Errorf("%w: ascending has %d flags for %d keys", ErrType, len(elems), n)
		}
		for j, e := range elems {
			b, err := asBool(e, "ascending")
			if err != nil {
				return nil, err
			}
			out[j] = b
		}
		return out, nil
	}
	b, err := asBool(v, "ascending")
	if err != nil {
		return nil, err
	}
	for j := range out {
		out[j] = b
	}
	return out, nil
}

// reducible lists the columns a frame-wide reduction applies to: numeric
// reductions skip text and date columns, the rest take everything.
func reducible(t *engine.Table, fn engine.AggFunc, skip map[string]bool) []string {
	numeric := fn == engine.AggSum || fn == engine.AggMean || fn == engine.AggMedian || fn == engine.AggStd
	var out []string
	for _, name := range t.Columns() {
		if skip[name] {
			continue
		}
		c, _ := t.Column(name)
		if numeric && c.Kind != engine.KindNumber && c.Kind != engine.KindBool {
			continue
		}
		out = append(out, name)
	}
	return out
}

func isNone(v value) bool {
	s, ok := v.(engine.Value)
	return ok && s.IsNull()
}

func (in *interp) pivot(f *frame, a *args) (value, error) {
	if err := a.accept("pivot_table", "values", "index", "columns", "aggfunc", "fill_value"); err != nil {
		return nil, err
	}
	var spec engine.PivotSpec
	names := func(i int, key string) ([]string, error) {
		v, ok := a.get(i, key)
		if !ok || isNone(v) {
			return nil, nil
		}
		cols, err := asStrings(v, key)
		if err != nil {
			return nil, err
		}
		return in.columnNames(f, cols)
	}

	var err error
	if spec.Values, err = names(0, "values"); err != nil {
		return nil, err
	}
	if spec.Index, err = names(1, "index"); err != nil {
		return nil, err
	}
	cols, err := names(2, "columns")
	if err != nil {
		return nil, err
	}
	switch len(cols) {
	case 0:
	case 1:
		spec.Columns = cols[0]
	default:
		return nil, fmt.Errorf("%w: pivot_table supports one columns key", ErrUnsupported)
	}
	agg, err := a.stringOr(3, "aggfunc", "mean")
	if err != nil {
		return nil, err
	}
	if spec.AggFunc, err = engine.ParseAggFunc(agg); err != nil {
		return nil, err
	}
	if v, ok := a.get(4, "fill_value"); ok {
		if spec.FillValue, err = asScalar(v, "fill_value"); err != nil {
			return nil, err
		}
	}
	t, err := f.t.Pivot(spec)
	if err != nil {
		return nil, err
	}
	return &frame{t: t}, nil
}

func (in *interp) fillna(f *frame, a *args) (value, error) {
	if err := a.accept("fillna", "value"); err != nil {
		return nil, err
	}
	v, ok := a.get(0, "value")
	if !ok {
		return nil, fmt.Errorf("%w: fillna needs a value", ErrType)
	}
	fills := make(map[string]engine.Value)
	switch v := v.(type) {
	case engine.Value:
		for _, name := range f.t.Columns() {
			fills[name] = v
		}
	case dict:
		for i := range v.keys {
			name, err := asString(v.keys[i], "column name")
			if err != nil {
				return nil, err
			}
			if name, err = in.columnName(f, name); err != nil {
				return nil, err
			}
			if fills[name], err = asScalar(v.vals[i], "fill value"); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: fillna value must be a scalar or a dict", ErrType)
	}

	t := f.t
	for _, name := range f.t.Columns() {
		fill, ok := fills[name]
		if !ok {
			continue
		}
		c, _ := t.Column(name)
		vals := make([]engine.Value, c.Len())
		for i, cell := range c.Values {
			if cell.IsNull() {
				cell = fill
			}
			vals[i] = cell
		}
		var err error
		if t, err = t.WithColumn(engine.NewColumn(name, vals)); err != nil {
			return nil, err
		}
	}
	return &frame{t: t}, nil
}

func (in *interp) dropna(f *frame, a *args) (value, error) {
	if err := a.accept("dropna", "subset", "how"); err != nil {
		return nil, err
	}
	cols := f.t.Columns()
	if v, ok := a.get(0, "subset"); ok && !isNone(v) {
		names, err := asStrings(v, "subset")
		if err != nil {
			return nil, err
		}
		if cols, err = in.columnNames(f, names); err != nil {
			return nil, err
		}
	}
	how, err := a.stringOr(1, "how", "any")
	if err != nil {
		return nil, err
	}
	if how != "any" && how != "all" {
		return nil, fmt.Errorf("%w: how must be 'any' or 'all'", ErrType)
	}

	keep := make([]int, 0, f.t.NumRows())
	for r := 0; r < f.t.NumRows(); r++ {
		nulls := 0
		for _, name := range cols {
			c, _ := f.t.Column(name)
			if c.Values[r].IsNull() {
				nulls++
			}
		}
		drop := nulls > 0
		if how == "all" {
			drop = len(cols) > 0 && nulls == len(cols)
		}
		if !drop {
			keep = append(keep, r)
		}
	}
	return &frame{t: f.t.Take(keep)}, nil
}
