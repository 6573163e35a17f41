package expr

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.starlark.net/syntax"

	"github.com/spektr-org/sheetql/engine"
)

var seriesMethods = map[string]bool{
	"isin": true, "between": true, "isna": true, "isnull": true, "notna": true, "notnull": true,
	"sum": true, "mean": true, "median": true, "min": true, "max": true, "count": true,
	"nunique": true, "std": true, "first": true, "last": true,
	"value_counts": true, "unique": true, "abs": true, "round": true,
	"head": true, "tail": true, "sort_values": true, "nlargest": true, "nsmallest": true,
	"fillna": true, "dropna": true, "reset_index": true, "to_frame": true,
	"idxmax": true, "idxmin": true, "tolist": true,
}

func (in *interp) seriesCall(s *series, name string, a *args) (value, error) {
	switch name {
	case "isin":
		if err := a.accept(name, "values"); err != nil {
			return nil, err
		}
		v, ok := a.get(0, "values")
		if !ok {
			return nil, fmt.Errorf("%w: isin needs values", ErrType)
		}
		return membership(s, v, false)

	case "between":
		return between(s, a)

	case "isna", "isnull", "notna", "notnull":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		want := name == "isna" || name == "isnull"
		return mapValues(s, func(v engine.Value) (engine.Value, error) {
			return engine.Boolean(v.IsNull() == want), nil
		})

	case "value_counts":
		if err := a.accept(name, "normalize", "ascending", "sort", "dropna"); err != nil {
			return nil, err
		}
		return valueCounts(s, a)

	case "unique":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		var out []engine.Value
		for _, v := range s.vals {
			if seen[v.Key()] {
				continue
			}
			seen[v.Key()] = true
			out = append(out, v)
		}
		return &series{name: s.name, vals: out}, nil

	case "abs":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		return mapNumeric(s, absFloat)

	case "round":
		if err := a.accept(name, "decimals"); err != nil {
			return nil, err
		}
		digits, err := a.intOr(0, "decimals", 0)
		if err != nil {
			return nil, err
		}
		return mapNumeric(s, func(f float64) float64 { return engine.RoundTo(f, digits) })

	case "head", "tail":
		if err := a.accept(name, "n"); err != nil {
			return nil, err
		}
		n, err := a.intOr(0, "n", 5)
		if err != nil {
			return nil, err
		}
		from, to := sliceBounds(nil, &n, s.len())
		if name == "tail" {
			neg := -n
			if n == 0 {
				neg = s.len()
			}
			from, to = sliceBounds(&neg, nil, s.len())
		}
		return s.take(positions(from, to)), nil

	case "sort_values":
		if err := a.accept(name, "ascending", "na_position", "kind"); err != nil {
			return nil, err
		}
		asc, err := a.boolOr(-1, "ascending", true)
		if err != nil {
			return nil, err
		}
		return sortSeries(s, !asc)

	case "nlargest", "nsmallest":
		if err := a.accept(name, "n", "keep"); err != nil {
			return nil, err
		}
		n, err := a.intOr(0, "n", 5)
		if err != nil {
			return nil, err
		}
		sorted, err := sortSeries(s, name == "nlargest")
		if err != nil {
			return nil, err
		}
		from, to := sliceBounds(nil, &n, sorted.len())
		return sorted.take(positions(from, to)), nil

	case "fillna":
		if err := a.accept(name, "value"); err != nil {
			return nil, err
		}
		v, ok := a.get(0, "value")
		if !ok {
			return nil, fmt.Errorf("%w: fillna needs a value", ErrType)
		}
		fill, err := asScalar(v, "value")
		if err != nil {
			return nil, err
		}
		return mapValues(s, func(v engine.Value) (engine.Value, error) {
			if v.IsNull() {
				return fill, nil
			}
			return v, nil
		})

	case "dropna":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		keep := make([]int, 0, s.len())
		for i, v := range s.vals {
			if !v.IsNull() {
				keep = append(keep, i)
			}
		}
		return s.take(keep), nil

	case "reset_index", "to_frame":
		if err := a.accept(name, "drop", "name"); err != nil {
			return nil, err
		}
		if drop, err := a.boolOr(-1, "drop", false); err != nil {
			return nil, err
		} else if drop {
			s = &series{name: s.name, vals: s.vals}
		}
		if v, ok := a.get(-1, "name"); ok {
			n, err := asString(v, "name")
			if err != nil {
				return nil, err
			}
			s = &series{name: n, vals: s.vals, index: s.index}
		}
		t, err := s.table()
		if err != nil {
			return nil, err
		}
		return &frame{t: t}, nil

	case "idxmax", "idxmin":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		fn := engine.AggMax
		if name == "idxmin" {
			fn = engine.AggMin
		}
		best, err := engine.Reduce(fn, s.vals)
		if err != nil {
			return nil, err
		}
		for i, v := range s.vals {
			if v.Equal(best) {
				if len(s.index) > 0 {
					return s.index[0].Values[i], nil
				}
				return engine.Num(float64(i)), nil
			}
		}
		return engine.Null(), nil

	case "tolist":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		out := make(list, s.len())
		for i, v := range s.vals {
			out[i] = v
		}
		return out, nil
	}

	fn, err := engine.ParseAggFunc(name)
	if err != nil {
		return nil, fmt.Errorf("%w: Series.%s", ErrUnsupported, name)
	}
	if err := a.accept(name); err != nil {
		return nil, err
	}
	v, err := engine.Reduce(fn, s.vals)
	if err != nil {
		return nil, fmt.Errorf("%s of %q: %w", fn, s.name, err)
	}
	return v, nil
}

func between(s *series, a *args) (value, error) {
	if err := a.accept("between", "left", "right", "inclusive"); err != nil {
		return nil, err
	}
	lv, lok := a.get(0, "left")
	rv, rok := a.get(1, "right")
	if !lok || !rok {
		return nil, fmt.Errorf("%w: between needs left and right", ErrType)
	}
	left, err := asScalar(lv, "left")
	if err != nil {
		return nil, err
	}
	right, err := asScalar(rv, "right")
	if err != nil {
		return nil, err
	}
	inclusive := "both"
	if v, ok := a.get(2, "inclusive"); ok {
		if b, isBool := v.(engine.Value); isBool && b.Kind == engine.KindBool {
			if !b.Bool {
				inclusive = "neither"
			}
		} else if inclusive, err = asString(v, "inclusive"); err != nil {
			return nil, err
		}
	}
	lo, hi := syntax.GT, syntax.LT
	switch inclusive {
	case "both":
		lo, hi = syntax.GE, syntax.LE
	case "left":
		lo = syntax.GE
	case "right":
		hi = syntax.LE
	case "neither":
	default:
		return nil, fmt.Errorf("%w: inclusive must be both, neither, left or right", ErrType)
	}
	return mapValues(s, func(v engine.Value) (engine.Value, error) {
		above, err := compareValues(lo, v, left)
		if err != nil {
			return engine.Value{}, err
		}
		below, err := compareValues(hi, v, right)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.Boolean(above && below), nil
	})
}

func valueCounts(s *series, a *args) (value, error) {
	normalize, err := a.boolOr(0, "normalize", false)
	if err != nil {
		return nil, err
	}
	asc, err := a.boolOr(-1, "ascending", false)
	if err != nil {
		return nil, err
	}
	name := s.name
	if name == "" {
		name = "value"
	}
	t, err := engine.MustNewTable(engine.NewColumn(name, s.vals)).ValueCounts(name)
	if err != nil {
		return nil, err
	}
	out := seriesOf(t, 1, "count")
	if normalize {
		total := 0.0
		for _, v := range out.vals {
			total += v.Num
		}
		props := make([]engine.Value, out.len())
		for i, v := range out.vals {
			props[i] = engine.Num(v.Num / total)
		}
		out = &series{name: "proportion", vals: props, index: out.index}
	}
	if asc {
		return sortSeries(out, false)
	}
	return out, nil
}

// sortSeries orders a series by value, carrying its index along.
func sortSeries(s *series, desc bool) (*series, error) {
	t, err := engine.NewTable(engine.NewColumn("v", s.vals), indexPositions(s.len()))
	if err != nil {
		return nil, err
	}
	sorted, err := t.Sort(engine.SortKey{Column: "v", Descending: desc})
	if err != nil {
		return nil, err
	}
	pos, _ := sorted.Column("i")
	rows := make([]int, len(pos.Values))
	for i, v := range pos.Values {
		rows[i] = int(v.Num)
	}
	return s.take(rows), nil
}

func indexPositions(n int) *engine.Column {
	vals := make([]engine.Value, n)
	for i := range vals {
		vals[i] = engine.Num(float64(i))
	}
	return engine.NewColumn("i", vals)
}

// ============================================================================
// ACCESSORS: .str methods and .dt fields
// ============================================================================

var strMethods = map[string]bool{
	"contains": true, "startswith": true, "endswith": true,
	"lower": true, "upper": true, "strip": true, "len": true, "replace": true,
}

func strCall(s *series, name string, a *args) (value, error) {
	text := func(fn func(string) engine.Value) (value, error) {
		return mapValues(s, func(v engine.Value) (engine.Value, error) {
			if v.Kind != engine.KindString {
				return engine.Null(), nil
			}
			return fn(v.Str), nil
		})
	}
	switch name {
	case "lower", "upper", "strip", "len":
		if err := a.accept(name); err != nil {
			return nil, err
		}
		return text(func(x string) engine.Value {
			switch name {
			case "lower":
				return engine.Str(strings.ToLower(x))
			case "upper":
				return engine.Str(strings.ToUpper(x))
			case "strip":
				return engine.Str(strings.TrimSpace(x))
			}
			return engine.Num(float64(utf8.RuneCountInString(x)))
		})

	case "replace":
		if err := a.accept(name, "pat", "repl", "regex"); err != nil {
			return nil, err
		}
		pat, err := a.stringOr(0, "pat", "")
		if err != nil {
			return nil, err
		}
		repl, err := a.stringOr(1, "repl", "")
		if err != nil {
			return nil, err
		}
		useRegex, err := a.boolOr(2, "regex", false)
		if err != nil {
			return nil, err
		}
		if useRegex {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrType, pat, err)
			}
			return text(func(x string) engine.Value { return engine.Str(re.ReplaceAllString(x, repl)) })
		}
		return text(func(x string) engine.Value { return engine.Str(strings.ReplaceAll(x, pat, repl)) })

	case "startswith", "endswith":
		if err := a.accept(name, "pat", "na"); err != nil {
			return nil, err
		}
		pat, err := a.stringOr(0, "pat", "")
		if err != nil {
			return nil, err
		}
		match := strings.HasPrefix
		if name == "endswith" {
			match = strings.HasSuffix
		}
		return predicate(s, a, 1, func(x string) bool { return match(x, pat) })

	case "contains":
		if err := a.accept(name, "pat", "case", "flags", "na", "regex"); err != nil {
			return nil, err
		}
		pat, err := a.stringOr(0, "pat", "")
		if err != nil {
			return nil, err
		}
		caseSensitive, err := a.boolOr(1, "case", true)
		if err != nil {
			return nil, err
		}
		useRegex, err := a.boolOr(4, "regex", true)
		if err != nil {
			return nil, err
		}
		if !useRegex {
			pat = regexp.QuoteMeta(pat)
		}
		if !caseSensitive {
			pat = "(?i)" + pat
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrType, pat, err)
		}
		return predicate(s, a, 3, re.MatchString)
	}
	return nil, fmt.Errorf("%w: str.%s", ErrUnsupported, name)
}

// predicate maps a string test over s. Non-string cells take na=, default False.
func predicate(s *series, a *args, naPos int, fn func(string) bool) (value, error) {
	na, err := a.boolOr(naPos, "na", false)
	if err != nil {
		return nil, err
	}
	return mapValues(s, func(v engine.Value) (engine.Value, error) {
		if v.Kind != engine.KindString {
			return engine.Boolean(na), nil
		}
		return engine.Boolean(fn(v.Str)), nil
	})
}

func datePart(s *series, field string) (value, error) {
	var part func(v engine.Value) float64
	switch field {
	case "year":
		part = func(v engine.Value) float64 { return float64(v.Time.Year()) }
	case "month":
		part = func(v engine.Value) float64 { return float64(v.Time.Month()) }
	case "day":
		part = func(v engine.Value) float64 { return float64(v.Time.Day()) }
	case "quarter":
		part = func(v engine.Value) float64 { return float64((int(v.Time.Month())-1)/3 + 1) }
	case "dayofweek", "weekday":
		// Monday is 0.
		part = func(v engine.Value) float64 { return float64((int(v.Time.Weekday()) + 6) % 7) }
	default:
		return nil, fmt.Errorf("%w: dt.%s", ErrUnsupported, field)
	}
	return mapValues(s, func(v engine.Value) (engine.Value, error) {
		switch v.Kind {
		case engine.KindNull:
			return v, nil
		case engine.KindTime:
			return engine.Num(part(v)), nil
		}
		return engine.Value{}, fmt.Errorf("%w: .dt needs date values, got %s", ErrType, v.Kind)
	})
}
