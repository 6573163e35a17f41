package engine

import (
	"fmt"
	"strings"
)

// ============================================================================
// FILTERS: Row selection by boolean mask
// ============================================================================
// Single-pass filter: a mask is computed once per predicate, then Filter
// takes the passing rows in table order.
// ============================================================================

// Filter keeps the rows whose mask entry is true.
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != t.rows {
		return nil, fmt.Errorf("mask has %d entries, table has %d rows", len(mask), t.rows)
	}
	indices := make([]int, 0, t.rows)
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return t.Take(indices), nil
}

// Mask evaluates pred against every cell of a column.
func (t *Table) Mask(column string, pred func(Value) bool) ([]bool, error) {
	c, err := t.MustColumn(column)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(c.Values))
	for i, v := range c.Values {
		mask[i] = pred(v)
	}
	return mask, nil
}

// Where is Mask followed by Filter.
func (t *Table) Where(column string, pred func(Value) bool) (*Table, error) {
	mask, err := t.Mask(column, pred)
	if err != nil {
		return nil, err
	}
	return t.Filter(mask)
}

// In returns a predicate matching any of the allowed cells.
// Strings match case-insensitively when fold is set.
func In(allowed []Value, fold bool) func(Value) bool {
	set := toKeySet(allowed, fold)
	return func(v Value) bool {
		if v.IsNull() {
			return false
		}
		if _, ok := set[foldKey(v, fold)]; ok {
			return true
		}
		// 1 == 1.0 == True, as with Equal.
		if f, ok := v.Float(); ok {
			_, hit := set[Num(f).Key()]
			return hit
		}
		return false
	}
}

// toKeySet converts allowed cells to a lookup set.
func toKeySet(items []Value, fold bool) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.IsNull() {
			continue
		}
		set[foldKey(item, fold)] = struct{}{}
		if f, ok := item.Float(); ok {
			set[Num(f).Key()] = struct{}{}
		}
	}
	return set
}

func foldKey(v Value, fold bool) string {
	if fold && v.Kind == KindString {
		return Str(strings.ToLower(v.Str)).Key()
	}
	return v.Key()
}

// And combines masks element-wise.
func And(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] && b[i]
	}
	return out
}
