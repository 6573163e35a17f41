package workbook

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// csvf is a single-sheet workbook read from comma-separated text.
type csvf struct {
	name string
	rows [][]string
}

func newCSV(name string, data []byte) (csvf, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return csvf{}, fmt.Errorf("failed to read CSV: %w", err)
	}
	return csvf{name: name, rows: rows}, nil
}

func (c csvf) Sheets() int { return 1 }
func (c csvf) Name(int) string { return c.name }
func (c csvf) Rows(int) int { return len(c.rows) }
func (c csvf) Cols(_, row int) int { return len(c.rows[row]) }
func (c csvf) Cell(_, row, col int) string { return c.rows[row][col] }
