package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// SHEETQL ENGINE TYPES: Typed cells for in-memory sheets
// ============================================================================
// A sheet is loaded once and then queried many times. Every cell is a Value
// tagged with its Kind; columns carry the dominant kind inferred at load.
// Nulls are first-class and follow spreadsheet/NaN semantics: they never
// compare equal to anything, and reductions skip them.
// ============================================================================

// Kind is the type tag of a Value or a Column.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single typed cell. The zero Value is null.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Str wraps a string cell.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Num wraps a numeric cell. NaN is stored as null.
func Num(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{Kind: KindNumber, Num: f}
}

// Boolean wraps a boolean cell.
func Boolean(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Timestamp wraps a date/time cell.
func Timestamp(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// IsNull reports whether the cell is empty.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Float returns the numeric reading of a cell. Booleans count as 0/1.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Truthy returns the boolean reading of a cell. Nulls are false.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	case KindTime:
		return !v.Time.IsZero()
	default:
		return false
	}
}

// String renders the cell for display. Nulls render as an empty string.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return FormatNumber(v.Num)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindTime:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Key is a kind-qualified identity used for grouping and deduplication.
func (v Value) Key() string {
	switch v.Kind {
	case KindString:
		return "s:" + v.Str
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return "b:" + strconv.FormatBool(v.Bool)
	case KindTime:
		return "t:" + v.Time.UTC().Format(time.RFC3339Nano)
	default:
		return "null"
	}
}

// Equal reports cell equality. Null is never equal to anything, itself included.
// Numbers and booleans compare numerically.
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return false
	}
	if a, ok := v.Float(); ok {
		if b, ok := o.Float(); ok {
			return a == b
		}
		return false
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindTime:
		return v.Time.Equal(o.Time)
	}
	return false
}

// Compare orders two non-null cells. Cells of unrelated kinds cannot be ordered.
func Compare(a, b Value) (int, error) {
	if a.IsNull() || b.IsNull() {
		return 0, fmt.Errorf("cannot order null values")
	}
	if x, ok := a.Float(); ok {
		if y, ok := b.Float(); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	if a.Kind != b.Kind {
		return 0, fmt.Errorf("cannot compare %s with %s", a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindString:
		return strings.Compare(a.Str, b.Str), nil
	case KindTime:
		return a.Time.Compare(b.Time), nil
	}
	return 0, fmt.Errorf("cannot compare %s values", a.Kind)
}

// ============================================================================
// GROUP: rows sharing the same key
// ============================================================================

// Group is one bucket of a GroupBy: the key cells and the row positions that
// carry them, in table order.
type Group struct {
	Key  []Value
	Rows []int
}

// ============================================================================
// TABLE TYPES: render-ready output
// ============================================================================

// TableData is a rendered table: string cells ready for a terminal, CSV or JSON.
type TableData struct {
	Title     string         `json:"title,omitempty"`
	Columns   []ColumnHeader `json:"columns"`
	Rows      [][]string     `json:"rows"`
	TotalRows int            `json:"totalRows"`
	Truncated bool           `json:"truncated,omitempty"`
	Summary   *Summary       `json:"summary,omitempty"`
}

// ColumnHeader defines a rendered column.
type ColumnHeader struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "bool", "date"
	Align string `json:"align"` // "left", "right"
}

// Summary provides totals for numeric columns.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}
