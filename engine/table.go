package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ============================================================================
// TABLE: ordered, uniquely named, position-aligned columns
// ============================================================================
// Tables are values: every operation returns a new Table and leaves the
// receiver untouched. Cells are copied on Take/Clone, so a derived table
// never aliases the column slices of its parent.
// ============================================================================

// ErrColumnNotFound is wrapped by every lookup of a missing column.
var ErrColumnNotFound = errors.New("column not found")

// ColumnError reports a reference to a column the table does not have.
type ColumnError struct {
	Name      string
	Available []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *ColumnError) Unwrap() error { return ErrColumnNotFound }

// Column is a named, typed sequence of cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// NewColumn builds a column and derives its kind from the non-null cells.
// Mixed kinds collapse to KindString; an all-null column is KindNull.
func NewColumn(name string, values []Value) *Column {
	return &Column{Name: name, Kind: dominantKind(values), Values: values}
}

func dominantKind(values []Value) Kind {
	kind := KindNull
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if kind == KindNull {
			kind = v.Kind
			continue
		}
		if kind != v.Kind {
			return KindString
		}
	}
	return kind
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

func (c *Column) clone() *Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: vals}
}

// Table is an in-memory sheet.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable assembles columns into a table. Names must be unique and all
// columns must have the same length.
func NewTable(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// MustNewTable is NewTable that panics on error. Intended for fixtures.
func MustNewTable(cols ...*Column) *Table {
	t, err := NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// MustColumn is Column returning a *ColumnError when absent.
func (t *Table) MustColumn(name string) (*Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, &ColumnError{Name: name, Available: t.Columns()}
	}
	return c, nil
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.columns[i] }

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Value {
	row := make([]Value, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = c.clone()
	}
	return t.withColumns(cols, t.rows)
}

func (t *Table) withColumns(cols []*Column, rows int) *Table {
	out := &Table{columns: cols, index: make(map[string]int, len(cols)), rows: rows}
	for i, c := range cols {
		out.index[c.Name] = i
	}
	return out
}

// Take returns the rows at the given positions, in the given order.
func (t *Table) Take(rows []int) *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		vals := make([]Value, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		cols[i] = &Column{Name: c.Name, Kind: c.Kind, Values: vals}
	}
	return t.withColumns(cols, len(rows))
}

// Select projects the named columns, in the order given.
func (t *Table) Select(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		c, err := t.MustColumn(n)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, fmt.Errorf("column %q selected twice", n)
		}
		seen[n] = true
		cols = append(cols, c.clone())
	}
	return t.withColumns(cols, t.rows), nil
}

// WithColumn returns a copy with the column added, or replaced when the
// name already exists.
func (t *Table) WithColumn(c *Column) (*Table, error) {
	if len(t.columns) > 0 && c.Len() != t.rows {
		return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
	}
	cols := make([]*Column, 0, len(t.columns)+1)
	replaced := false
	for _, existing := range t.columns {
		if existing.Name == c.Name {
			cols = append(cols, c)
			replaced = true
			continue
		}
		cols = append(cols, existing)
	}
	if !replaced {
		cols = append(cols, c)
	}
	return t.withColumns(cols, c.Len()), nil
}

// Rename returns a copy with columns renamed. Unknown names are ignored.
func (t *Table) Rename(names map[string]string) (*Table, error) {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		name := c.Name
		if n, ok := names[name]; ok {
			name = n
		}
		cols[i] = &Column{Name: name, Kind: c.Kind, Values: c.Values}
	}
	return NewTable(cols...)
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	return t.Take(span(0, clamp(n, t.rows)))
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	n = clamp(n, t.rows)
	return t.Take(span(t.rows-n, t.rows))
}

func clamp(n, max int) int {
	if n < 0 {
		n = max + n
		if n < 0 {
			n = 0
		}
	}
	if n > max {
		return max
	}
	return n
}

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// ============================================================================
// SORTING
// ============================================================================

// SortKey orders by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// Sort returns rows stably ordered by the keys. Nulls sort last in either
// direction. Cells that cannot be ordered against each other are an error.
func (t *Table) Sort(keys ...SortKey) (*Table, error) {
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		c, err := t.MustColumn(k.Column)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}

	perm := span(0, t.rows)
	var cmpErr error
	sort.SliceStable(perm, func(a, b int) bool {
		for i, c := range cols {
			x, y := c.Values[perm[a]], c.Values[perm[b]]
			switch {
			case x.IsNull() && y.IsNull():
				continue
			case x.IsNull():
				return false
			case y.IsNull():
				return true
			}
			r, err := Compare(x, y)
			if err != nil {
				if cmpErr == nil {
					cmpErr = fmt.Errorf("sort by %q: %w", c.Name, err)
				}
				return false
			}
			if r == 0 {
				continue
			}
			if keys[i].Descending {
				return r > 0
			}
			return r < 0
		}
		return false
	})
	if cmpErr != nil {
		return nil, cmpErr
	}
	return t.Take(perm), nil
}

// DropDuplicates keeps the first row of each distinct combination of the
// subset columns (all columns when subset is empty).
func (t *Table) DropDuplicates(subset ...string) (*Table, error) {
	if len(subset) == 0 {
		subset = t.Columns()
	}
	cols := make([]*Column, len(subset))
	for i, n := range subset {
		c, err := t.MustColumn(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	seen := make(map[string]bool, t.rows)
	keep := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		var b strings.Builder
		for _, c := range cols {
			b.WriteString(c.Values[r].Key())
			b.WriteByte(0)
		}
		k := b.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		keep = append(keep, r)
	}
	return t.Take(keep), nil
}

// ============================================================================
// FINGERPRINT
// ============================================================================

// Fingerprint hashes column names, kinds and every cell. Two tables with the
// same content have the same fingerprint regardless of identity.
func (t *Table) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.rows))
	_, _ = d.Write(buf[:])
	for _, c := range t.columns {
		_, _ = d.WriteString(c.Name)
		_, _ = d.Write([]byte{0, byte(c.Kind)})
		for _, v := range c.Values {
			_, _ = d.Write([]byte{byte(v.Kind)})
			switch v.Kind {
			case KindString:
				_, _ = d.WriteString(v.Str)
				_, _ = d.Write([]byte{0})
			case KindNumber:
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.Num))
				_, _ = d.Write(buf[:])
			case KindBool:
				if v.Bool {
					_, _ = d.Write([]byte{1})
				} else {
					_, _ = d.Write([]byte{0})
				}
			case KindTime:
				binary.LittleEndian.PutUint64(buf[:], uint64(v.Time.UnixNano()))
				_, _ = d.Write(buf[:])
			}
		}
	}
	return d.Sum64()
}
