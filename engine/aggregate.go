package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ============================================================================
// AGGREGATORS: Grouping, Aggregation, and Value Counts
// ============================================================================
// Reductions skip nulls. Grouping drops rows whose key contains a null and
// returns groups in ascending key order.
// ============================================================================

// AggFunc names a reduction.
type AggFunc string

const (
	AggSum     AggFunc = "sum"
	AggMean    AggFunc = "mean"
	AggMedian  AggFunc = "median"
	AggMin     AggFunc = "min"
	AggMax     AggFunc = "max"
	AggCount   AggFunc = "count"
	AggNunique AggFunc = "nunique"
	AggStd     AggFunc = "std"
	AggFirst   AggFunc = "first"
	AggLast    AggFunc = "last"
	AggSize    AggFunc = "size"
)

// ParseAggFunc maps a user-facing aggregation name to an AggFunc.
func ParseAggFunc(name string) (AggFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sum", "total":
		return AggSum, nil
	case "mean", "avg", "average":
		return AggMean, nil
	case "median":
		return AggMedian, nil
	case "min", "minimum":
		return AggMin, nil
	case "max", "maximum":
		return AggMax, nil
	case "count":
		return AggCount, nil
	case "nunique":
		return AggNunique, nil
	case "std":
		return AggStd, nil
	case "first":
		return AggFirst, nil
	case "last":
		return AggLast, nil
	case "size", "len":
		return AggSize, nil
	}
	return "", fmt.Errorf("unsupported aggregation %q", name)
}

// Reduce applies fn to a sequence of cells.
func Reduce(fn AggFunc, values []Value) (Value, error) {
	switch fn {
	case AggSize:
		return Num(float64(len(values))), nil
	case AggCount:
		n := 0
		for _, v := range values {
			if !v.IsNull() {
				n++
			}
		}
		return Num(float64(n)), nil
	case AggNunique:
		seen := make(map[string]bool)
		for _, v := range values {
			if !v.IsNull() {
				seen[v.Key()] = true
			}
		}
		return Num(float64(len(seen))), nil
	case AggFirst:
		for _, v := range values {
			if !v.IsNull() {
				return v, nil
			}
		}
		return Null(), nil
	case AggLast:
		for i := len(values) - 1; i >= 0; i-- {
			if !values[i].IsNull() {
				return values[i], nil
			}
		}
		return Null(), nil
	case AggMin, AggMax:
		return extreme(fn, values)
	case AggSum, AggMean, AggMedian, AggStd:
		nums, err := numbers(fn, values)
		if err != nil {
			return Null(), err
		}
		switch fn {
		case AggSum:
			return Num(SumFloats(nums)), nil
		case AggMean:
			return Num(MeanFloats(nums)), nil
		case AggMedian:
			return Num(MedianFloats(nums)), nil
		default:
			return Num(StdFloats(nums)), nil
		}
	}
	return Null(), fmt.Errorf("unsupported aggregation %q", fn)
}

func numbers(fn AggFunc, values []Value) ([]float64, error) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		f, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("%s requires numeric values, got %s", fn, v.Kind)
		}
		nums = append(nums, f)
	}
	return nums, nil
}

func extreme(fn AggFunc, values []Value) (Value, error) {
	best := Null()
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if best.IsNull() {
			best = v
			continue
		}
		c, err := Compare(v, best)
		if err != nil {
			return Null(), fmt.Errorf("%s: %w", fn, err)
		}
		if (fn == AggMin && c < 0) || (fn == AggMax && c > 0) {
			best = v
		}
	}
	return best, nil
}

// SumFloats sums a slice. The empty sum is 0.
func SumFloats(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}
	return total
}

// MeanFloats averages a slice. The empty mean is NaN.
func MeanFloats(nums []float64) float64 {
	if len(nums) == 0 {
		return math.NaN()
	}
	return SumFloats(nums) / float64(len(nums))
}

// MedianFloats returns the middle value of a slice. The empty median is NaN.
func MedianFloats(nums []float64) float64 {
	n := len(nums)
	if n == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// StdFloats is the sample standard deviation (one delta degree of freedom).
func StdFloats(nums []float64) float64 {
	n := len(nums)
	if n < 2 {
		return math.NaN()
	}
	mean := MeanFloats(nums)
	var ss float64
	for _, x := range nums {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss / float64(n-1))
}

// ============================================================================
// GROUPING
// ============================================================================

// GroupBy buckets rows by the given key columns.
func (t *Table) GroupBy(by ...string) ([]Group, error) {
	if len(by) == 0 {
		return nil, fmt.Errorf("groupby needs at least one key")
	}
	keys := make([]*Column, len(by))
	for i, name := range by {
		c, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		keys[i] = c
	}

	grouped := make(map[string]int)
	var groups []Group
rows:
	for r := 0; r < t.rows; r++ {
		key := make([]Value, len(keys))
		var b strings.Builder
		for i, c := range keys {
			v := c.Values[r]
			if v.IsNull() {
				continue rows
			}
			key[i] = v
			b.WriteString(v.Key())
			b.WriteByte(0)
		}
		k := b.String()
		gi, ok := grouped[k]
		if !ok {
			gi = len(groups)
			grouped[k] = gi
			groups = append(groups, Group{Key: key})
		}
		groups[gi].Rows = append(groups[gi].Rows, r)
	}

	sortGroups(groups)
	return groups, nil
}

// sortGroups orders groups by key, column by column. Keys of unrelated kinds
// fall back to display order.
func sortGroups(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		for k := range groups[i].Key {
			c, err := Compare(groups[i].Key[k], groups[j].Key[k])
			if err != nil {
				c = strings.Compare(groups[i].Key[k].String(), groups[j].Key[k].String())
			}
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// AggSpec is one output column of Aggregate.
type AggSpec struct {
	Column string  // source column; ignored for AggSize
	Func   AggFunc
	As     string // output name; defaults to Column, or "size"
}

func (s AggSpec) outputName() string {
	if s.As != "" {
		return s.As
	}
	if s.Func == AggSize || s.Column == "" {
		return string(s.Func)
	}
	return s.Column
}

// Aggregate groups by the key columns and reduces each spec per group.
// The result has the key columns first, then one column per spec.
func (t *Table) Aggregate(by []string, specs []AggSpec) (*Table, error) {
	groups, err := t.GroupBy(by...)
	if err != nil {
		return nil, err
	}
	return t.AggregateGroups(by, groups, specs)
}

// AggregateGroups reduces pre-computed groups.
func (t *Table) AggregateGroups(by []string, groups []Group, specs []AggSpec) (*Table, error) {
	cols := make([]*Column, 0, len(by)+len(specs))
	for i, name := range by {
		vals := make([]Value, len(groups))
		for g := range groups {
			vals[g] = groups[g].Key[i]
		}
		cols = append(cols, NewColumn(name, vals))
	}
	for _, spec := range specs {
		var src *Column
		if spec.Func != AggSize {
			c, err := t.MustColumn(spec.Column)
			if err != nil {
				return nil, err
			}
			src = c
		}
		vals := make([]Value, len(groups))
		for g, grp := range groups {
			cells := make([]Value, len(grp.Rows))
			if src != nil {
				for i, r := range grp.Rows {
					cells[i] = src.Values[r]
				}
			}
			v, err := Reduce(spec.Func, cells)
			if err != nil {
				return nil, fmt.Errorf("aggregate %q: %w", spec.outputName(), err)
			}
			vals[g] = v
		}
		cols = append(cols, NewColumn(spec.outputName(), vals))
	}
	return NewTable(cols...)
}

// ReduceColumns applies one reduction to each named column and returns a
// two-column table of (column, value), one row per column.
func (t *Table) ReduceColumns(fn AggFunc, names ...string) (*Table, error) {
	if len(names) == 0 {
		names = t.Columns()
	}
	labels := make([]Value, 0, len(names))
	results := make([]Value, 0, len(names))
	for _, name := range names {
		c, err := t.MustColumn(name)
		if err != nil {
			return nil, err
		}
		v, err := Reduce(fn, c.Values)
		if err != nil {
			return nil, fmt.Errorf("%s of %q: %w", fn, name, err)
		}
		labels = append(labels, Str(name))
		results = append(results, v)
	}
	return NewTable(NewColumn("column", labels), NewColumn(string(fn), results))
}

// ValueCounts counts distinct non-null cells of a column, most frequent
// first; ties keep first-appearance order.
func (t *Table) ValueCounts(column string) (*Table, error) {
	c, err := t.MustColumn(column)
	if err != nil {
		return nil, err
	}
	type bucket struct {
		v Value
		n int
	}
	index := make(map[string]int)
	var buckets []bucket
	for _, v := range c.Values {
		if v.IsNull() {
			continue
		}
		k := v.Key()
		if i, ok := index[k]; ok {
			buckets[i].n++
			continue
		}
		index[k] = len(buckets)
		buckets = append(buckets, bucket{v: v, n: 1})
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].n > buckets[j].n })

	vals := make([]Value, len(buckets))
	counts := make([]Value, len(buckets))
	for i, b := range buckets {
		vals[i] = b.v
		counts[i] = Num(float64(b.n))
	}
	name := "count"
	if column == name {
		name = "count_"
	}
	return NewTable(NewColumn(column, vals), NewColumn(name, counts))
}

// ============================================================================
// FORMATTING UTILITIES
// ============================================================================

// FormatNumber renders integral values without a fraction and others with
// up to six significant decimals.
func FormatNumber(f float64) string {
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	s := strconv.FormatFloat(RoundTo(f, 6), 'f', -1, 64)
	return s
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	if n < 1000 {
		return strconv.Itoa(n)
	}
	return fmt.Sprintf("%s,%03d", FormatInt(n/1000), n%1000)
}

// RoundTo rounds to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
