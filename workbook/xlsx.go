package workbook

import "github.com/tealeg/xlsx"

type xlsxf struct{ x *xlsx.File }

func (x xlsxf) Sheets() int {
	return len(x.x.Sheets)
}

func (x xlsxf) Name(sheet int) string {
	return x.x.Sheets[sheet].Name
}

func (x xlsxf) Rows(sheet int) int {
	return len(x.x.Sheets[sheet].Rows)
}

func (x xlsxf) Cols(sheet, row int) int {
	r := x.x.Sheets[sheet].Rows[row]
	if r == nil {
		return 0
	}
	return len(r.Cells)
}

func (x xlsxf) Cell(sheet, row, col int) string {
	c := x.x.Sheets[sheet].Rows[row].Cells[col]
	if c == nil {
		return ""
	}
	return c.String()
}
