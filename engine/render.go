package engine

import (
	"fmt"
	"math"
)

// ============================================================================
// TABLE BUILDER: Produces TableData from a Table
// ============================================================================
// Numbers are right-aligned, everything else left-aligned. Rows beyond the
// display limit are dropped and flagged; totals are computed over every row.
// ============================================================================

// BuildTable renders a table for display.
func BuildTable(t *Table, opts ...RenderOption) *TableData {
	cfg := applyOptions(opts)

	if t == nil || t.NumCols() == 0 {
		return &TableData{
			Title:   cfg.Title,
			Columns: []ColumnHeader{},
			Rows:    [][]string{},
		}
	}

	columns := make([]ColumnHeader, 0, t.NumCols())
	for _, c := range t.columns {
		columns = append(columns, headerFor(c))
	}

	shown := t.rows
	if cfg.MaxRows > 0 && shown > cfg.MaxRows {
		shown = cfg.MaxRows
	}
	rows := make([][]string, 0, shown)
	for r := 0; r < shown; r++ {
		row := make([]string, len(t.columns))
		for i, c := range t.columns {
			row[i] = c.Values[r].String()
		}
		rows = append(rows, row)
	}

	data := &TableData{
		Title:     cfg.Title,
		Columns:   columns,
		Rows:      rows,
		TotalRows: t.rows,
		Truncated: shown < t.rows,
	}
	if cfg.Totals {
		data.Summary = buildSummary(t)
	}
	return data
}

func headerFor(c *Column) ColumnHeader {
	h := ColumnHeader{Key: c.Name, Label: c.Name, Type: "text", Align: "left"}
	switch c.Kind {
	case KindNumber:
		h.Type, h.Align = "number", "right"
	case KindBool:
		h.Type = "bool"
	case KindTime:
		h.Type = "date"
	}
	return h
}

// buildSummary totals every numeric column.
func buildSummary(t *Table) *Summary {
	values := make(map[string]string)
	for _, c := range t.columns {
		if c.Kind != KindNumber {
			continue
		}
		nums, err := numbers(AggSum, c.Values)
		if err != nil {
			continue
		}
		total := SumFloats(nums)
		if math.IsNaN(total) {
			continue
		}
		values[c.Name] = FormatNumber(RoundTo(total, 2))
	}
	if len(values) == 0 {
		return nil
	}
	return &Summary{
		Label:  fmt.Sprintf("Total (%s rows)", FormatInt(t.rows)),
		Values: values,
	}
}
