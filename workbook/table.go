package workbook

import (
	"fmt"
	"strings"

	"github.com/spektr-org/sheetql/engine"
	"github.com/spektr-org/sheetql/schema"
)

// buildTable turns a raw cell grid into a typed table.
//
// The first row with any content is the header. Blank headers become
// "Unnamed: <i>" and repeated headers get ".1", ".2" suffixes. Fully blank
// rows are dropped and short rows are padded with nulls.
func buildTable(grid [][]string, opts schema.Options) (*engine.Table, error) {
	start := -1
	for i, row := range grid {
		if !blankRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, ErrEmptySheet
	}

	width := 0
	for _, row := range grid[start:] {
		if n := trimmedWidth(row); n > width {
			width = n
		}
	}
	headers := uniqueHeaders(grid[start], width)

	var body [][]string
	for _, row := range grid[start+1:] {
		if !blankRow(row) {
			body = append(body, row)
		}
	}

	cols := make([]*engine.Column, width)
	raw := make([]string, len(body))
	for c := 0; c < width; c++ {
		for r, row := range body {
			if c < len(row) {
				raw[r] = row[c]
			} else {
				raw[r] = ""
			}
		}
		kind, values := schema.InferWith(raw, opts)
		cols[c] = &engine.Column{Name: headers[c], Kind: kind, Values: values}
	}
	return engine.NewTable(cols...)
}

func blankRow(row []string) bool {
	return trimmedWidth(row) == 0
}

// trimmedWidth is the row length ignoring trailing blank cells.
func trimmedWidth(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}

func uniqueHeaders(row []string, width int) []string {
	headers := make([]string, width)
	used := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		h := ""
		if i < len(row) {
			h = strings.TrimSpace(row[i])
		}
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		used[name] = true
		headers[i] = name
	}
	return headers
}
