package workbook

import "github.com/extrame/xls"

type xlsf struct{ x *xls.WorkBook }

func (x xlsf) Sheets() int {
	return x.x.NumSheets()
}

func (x xlsf) Name(sheet int) string {
	if s := x.x.GetSheet(sheet); s != nil {
		return s.Name
	}
	return ""
}

func (x xlsf) Rows(sheet int) int {
	s := x.x.GetSheet(sheet)
	if s == nil {
		return 0
	}
	return int(s.MaxRow) + 1
}

func (x xlsf) Cols(sheet, row int) int {
	r := x.x.GetSheet(sheet).Row(row)
	if r == nil {
		return 0
	}
	return r.LastCol() + 1
}

func (x xlsf) Cell(sheet, row, col int) string {
	return x.x.GetSheet(sheet).Row(row).Col(col)
}
