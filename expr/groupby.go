package expr

import (
	"fmt"

	"github.com/spektr-org/sheetql/engine"
)

var groupMethods = map[string]bool{
	"sum": true, "mean": true, "median": true, "min": true, "max": true,
	"count": true, "nunique": true, "size": true, "first": true, "last": true,
	"std": true, "agg": true, "aggregate": true,
}

// groupSelect narrows a GroupBy to one column (g['c'], g.c) or several
// (g[['a', 'b']]).
func (in *interp) groupSelect(g *grouped, key value) (value, error) {
	f := &frame{t: g.t}
	if s, ok := key.(engine.Value); ok && s.Kind == engine.KindString {
		name, err := in.columnName(f, s.Str)
		if err != nil {
			return nil, err
		}
		return &grouped{t: g.t, by: g.by, groups: g.groups, sel: []string{name}, single: true}, nil
	}
	names, err := asStrings(key, "column selection")
	if err != nil {
		return nil, err
	}
	if names, err = in.columnNames(f, names); err != nil {
		return nil, err
	}
	return &grouped{t: g.t, by: g.by, groups: g.groups, sel: names}, nil
}

func (in *interp) groupCall(g *grouped, name string, a *args) (value, error) {
	if name == "agg" || name == "aggregate" {
		return in.agg(g, a)
	}
	if err := a.accept(name); err != nil {
		return nil, err
	}
	fn, err := engine.ParseAggFunc(name)
	if err != nil {
		return nil, fmt.Errorf("%w: GroupBy.%s", ErrUnsupported, name)
	}
	return g.reduce(fn)
}

func (g *grouped) reduce(fn engine.AggFunc) (value, error) {
	if fn == engine.AggSize {
		t, err := g.t.AggregateGroups(g.by, g.groups, []engine.AggSpec{{Func: engine.AggSize}})
		if err != nil {
			return nil, err
		}
		return seriesOf(t, len(g.by), "size"), nil
	}
	targets := g.targets(fn)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no columns to %s", ErrType, fn)
	}
	specs := make([]engine.AggSpec, len(targets))
	for i, c := range targets {
		specs[i] = g.spec(c, fn, c)
	}
	t, err := g.t.AggregateGroups(g.by, g.groups, specs)
	if err != nil {
		return nil, err
	}
	if g.single {
		return seriesOf(t, len(g.by), targets[0]), nil
	}
	return &frame{t: t}, nil
}

// targets lists the columns a reduction applies to.
func (g *grouped) targets(fn engine.AggFunc) []string {
	if g.sel != nil {
		return g.sel
	}
	keys := make(map[string]bool, len(g.by))
	for _, k := range g.by {
		keys[k] = true
	}
	return reducible(g.t, fn, keys)
}

// spec names the output after as, moving it aside when it clashes with a
// group key.
func (g *grouped) spec(column string, fn engine.AggFunc, as string) engine.AggSpec {
	for _, k := range g.by {
		if k == as {
			as = as + "_" + string(fn)
			break
		}
	}
	return engine.AggSpec{Column: column, Func: fn, As: as}
}

// agg handles the four pandas spellings:
//
//	g.agg('sum')
//	g.agg(['sum', 'mean'])
//	g.agg({'Revenue': 'sum', 'Units': ['min', 'max']})
//	g.agg(total=('Revenue', 'sum'))
func (in *interp) agg(g *grouped, a *args) (value, error) {
	f := &frame{t: g.t}
	var specs []engine.AggSpec

	if len(a.pos) == 0 {
		if len(a.names) == 0 {
			return nil, fmt.Errorf("%w: agg needs a function", ErrType)
		}
		for _, as := range a.names {
			pair, ok := items(a.kw[as])
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: %s must be a (column, function) pair", ErrType, as)
			}
			col, err := asString(pair[0], "column")
			if err != nil {
				return nil, err
			}
			if col, err = in.columnName(f, col); err != nil {
				return nil, err
			}
			fn, err := aggFunc(pair[1])
			if err != nil {
				return nil, err
			}
			specs = append(specs, g.spec(col, fn, as))
		}
		return g.aggregate(specs)
	}
	if len(a.pos) > 1 || len(a.names) > 0 {
		return nil, fmt.Errorf("%w: agg takes one argument", ErrType)
	}

	switch arg := a.pos[0].(type) {
	case engine.Value:
		fn, err := aggFunc(arg)
		if err != nil {
			return nil, err
		}
		return g.reduce(fn)

	case list, tuple:
		fns, err := aggFuncs(arg)
		if err != nil {
			return nil, err
		}
		targets := g.targets(engine.AggCount)
		for _, c := range targets {
			for _, fn := range fns {
				as := c + "_" + string(fn)
				if g.single {
					as = string(fn)
				}
				specs = append(specs, g.spec(c, fn, as))
			}
		}
		return g.aggregate(specs)

	case dict:
		for i := range arg.keys {
			col, err := asString(arg.keys[i], "column")
			if err != nil {
				return nil, err
			}
			if col, err = in.columnName(f, col); err != nil {
				return nil, err
			}
			if _, single := arg.vals[i].(engine.Value); single {
				fn, err := aggFunc(arg.vals[i])
				if err != nil {
					return nil, err
				}
				specs = append(specs, g.spec(col, fn, col))
				continue
			}
			fns, err := aggFuncs(arg.vals[i])
			if err != nil {
				return nil, err
			}
			for _, fn := range fns {
				specs = append(specs, g.spec(col, fn, col+"_"+string(fn)))
			}
		}
		return g.aggregate(specs)
	}
	return nil, fmt.Errorf("%w: agg argument must be a name, list or dict", ErrType)
}

func (g *grouped) aggregate(specs []engine.AggSpec) (value, error) {
	t, err := g.t.AggregateGroups(g.by, g.groups, specs)
	if err != nil {
		return nil, err
	}
	return &frame{t: t}, nil
}

func aggFunc(v value) (engine.AggFunc, error) {
	name, err := asString(v, "aggregation")
	if err != nil {
		return "", err
	}
	return engine.ParseAggFunc(name)
}

func aggFuncs(v value) ([]engine.AggFunc, error) {
	elems, ok := items(v)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of aggregations", ErrType)
	}
	out := make([]engine.AggFunc, len(elems))
	for i, e := range elems {
		fn, err := aggFunc(e)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}
