package engine

import (
	"fmt"
)

// PivotSpec describes a spreadsheet-style pivot table.
type PivotSpec struct {
	Index     []string // row keys
	Columns   string   // optional column key; its distinct values become columns
	Values    []string // measured columns; empty means every numeric column left over
	AggFunc   AggFunc  // defaults to mean
	FillValue Value    // used for empty cells; null leaves them empty
}

// Pivot reshapes the table so each distinct Index key is one row and, when
// Columns is set, each distinct Columns value becomes an output column.
// Output columns are named after the Columns value, prefixed with the value
// column name when more than one value column is pivoted.
func (t *Table) Pivot(spec PivotSpec) (*Table, error) {
	if len(spec.Index) == 0 {
		return nil, fmt.Errorf("pivot needs an index")
	}
	if spec.AggFunc == "" {
		spec.AggFunc = AggMean
	}
	values, err := t.pivotValues(spec)
	if err != nil {
		return nil, err
	}

	if spec.Columns == "" {
		specs := make([]AggSpec, len(values))
		for i, v := range values {
			specs[i] = AggSpec{Column: v, Func: spec.AggFunc}
		}
		out, err := t.Aggregate(spec.Index, specs)
		if err != nil {
			return nil, err
		}
		return fillNulls(out, spec.Index, spec.FillValue), nil
	}

	rowGroups, err := t.GroupBy(spec.Index...)
	if err != nil {
		return nil, err
	}
	colGroups, err := t.GroupBy(spec.Columns)
	if err != nil {
		return nil, err
	}
	colOf := make([]int, t.rows)
	for i := range colOf {
		colOf[i] = -1
	}
	for ci, g := range colGroups {
		for _, r := range g.Rows {
			colOf[r] = ci
		}
	}

	cols := make([]*Column, 0, len(spec.Index)+len(values)*len(colGroups))
	for i, name := range spec.Index {
		vals := make([]Value, len(rowGroups))
		for g := range rowGroups {
			vals[g] = rowGroups[g].Key[i]
		}
		cols = append(cols, NewColumn(name, vals))
	}

	for _, valueName := range values {
		src, err := t.MustColumn(valueName)
		if err != nil {
			return nil, err
		}
		for ci, cg := range colGroups {
			name := cg.Key[0].String()
			if len(values) > 1 {
				name = valueName + "_" + name
			}
			cells := make([]Value, len(rowGroups))
			for ri, rg := range rowGroups {
				var bucket []Value
				for _, r := range rg.Rows {
					if colOf[r] == ci {
						bucket = append(bucket, src.Values[r])
					}
				}
				if len(bucket) == 0 {
					cells[ri] = spec.FillValue
					continue
				}
				v, err := Reduce(spec.AggFunc, bucket)
				if err != nil {
					return nil, fmt.Errorf("pivot %q: %w", valueName, err)
				}
				if v.IsNull() {
					v = spec.FillValue
				}
				cells[ri] = v
			}
			cols = append(cols, NewColumn(name, cells))
		}
	}
	return NewTable(cols...)
}

func (t *Table) pivotValues(spec PivotSpec) ([]string, error) {
	if len(spec.Values) > 0 {
		for _, v := range spec.Values {
			if _, err := t.MustColumn(v); err != nil {
				return nil, err
			}
		}
		return spec.Values, nil
	}
	used := make(map[string]bool)
	for _, k := range spec.Index {
		used[k] = true
	}
	used[spec.Columns] = true
	var values []string
	for _, c := range t.columns {
		if !used[c.Name] && c.Kind == KindNumber {
			values = append(values, c.Name)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("pivot has no numeric columns to aggregate")
	}
	return values, nil
}

func fillNulls(t *Table, skip []string, fill Value) *Table {
	if fill.IsNull() {
		return t
	}
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		if skipped[c.Name] {
			cols[i] = c
			continue
		}
		vals := make([]Value, len(c.Values))
		for j, v := range c.Values {
			if v.IsNull() {
				v = fill
			}
			vals[j] = v
		}
		cols[i] = NewColumn(c.Name, vals)
	}
	return t.withColumns(cols, t.rows)
}
