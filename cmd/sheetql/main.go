// Command sheetql answers natural-language questions about a spreadsheet.
//
//	sheetql sheets sales.xlsx
//	sheetql query sales.xlsx filter "rows where Region is North"
//	sheetql exec sales.csv "df.groupby('Region')['Revenue'].sum()" -o csv
//	sheetql resolve sales.xlsx "qty"
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:]))
}
