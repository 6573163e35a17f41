// Package workbook opens spreadsheet files and turns their sheets into
// typed engine tables.
package workbook

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/tealeg/xlsx"

	"github.com/spektr-org/sheetql/engine"
	"github.com/spektr-org/sheetql/schema"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported workbook format")
	// ErrSheetNotFound is returned when a sheet name is not in the workbook.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrEmptySheet is returned when a sheet has no header row.
	ErrEmptySheet = errors.New("sheet is empty")
)

// reader is the cell-level view shared by every file format.
type reader interface {
	Sheets() int
	Name(sheet int) string
	Rows(sheet int) int
	Cols(sheet, row int) int
	Cell(sheet, row, col int) string
}

// Workbook is an opened spreadsheet file.
type Workbook struct {
	name   string
	r      reader
	opts   schema.Options
	byName map[string]int
}

// Open reads a workbook from disk. The format is chosen by extension:
// .xlsx/.xlsm, .xls or .csv.
func Open(path string) (*Workbook, error) {
	var (
		r   reader
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		var f *xlsx.File
		if f, err = xlsx.OpenFile(path); err == nil {
			r = xlsxf{f}
		}
	case ".xls":
		var f *xls.WorkBook
		if f, err = xls.Open(path, "utf-8"); err == nil {
			r = xlsf{f}
		}
	case ".csv", ".txt":
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			r, err = newCSV(sheetNameFromPath(path), data)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return newWorkbook(filepath.Base(path), r), nil
}

// OpenBytes reads an uploaded workbook held in memory. name is only used to
// pick the format and label the workbook.
func OpenBytes(name string, data []byte) (*Workbook, error) {
	var (
		r   reader
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		var f *xlsx.File
		if f, err = xlsx.OpenBinary(data); err == nil {
			r = xlsxf{f}
		}
	case ".xls":
		var f *xls.WorkBook
		if f, err = xls.OpenReader(bytes.NewReader(data), "utf-8"); err == nil {
			r = xlsf{f}
		}
	case ".csv", ".txt":
		r, err = newCSV(sheetNameFromPath(name), data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}
	return newWorkbook(name, r), nil
}

func newWorkbook(name string, r reader) *Workbook {
	w := &Workbook{name: name, r: r, opts: schema.DefaultOptions(), byName: make(map[string]int)}
	for i := 0; i < r.Sheets(); i++ {
		if _, dup := w.byName[r.Name(i)]; !dup {
			w.byName[r.Name(i)] = i
		}
	}
	return w
}

// Name returns the file name the workbook was opened from.
func (w *Workbook) Name() string { return w.name }

// SheetNames lists the sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, 0, w.r.Sheets())
	for i := 0; i < w.r.Sheets(); i++ {
		names = append(names, w.r.Name(i))
	}
	return names
}

// Sheet converts a sheet into a table. The first non-empty row is the header.
func (w *Workbook) Sheet(name string) (*engine.Table, error) {
	i, ok := w.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	grid := make([][]string, 0, w.r.Rows(i))
	for row := 0; row < w.r.Rows(i); row++ {
		cols := w.r.Cols(i, row)
		cells := make([]string, cols)
		for col := 0; col < cols; col++ {
			cells[col] = w.r.Cell(i, row, col)
		}
		grid = append(grid, cells)
	}
	t, err := buildTable(grid, w.opts)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}
	return t, nil
}

func sheetNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
