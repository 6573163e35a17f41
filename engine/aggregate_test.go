package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	vals := []Value{Num(4), Null(), Num(1), Num(7)}

	tests := []struct {
		fn   AggFunc
		want string
	}{
		{AggSum, "12"},
		{AggMean, "4"},
		{AggMedian, "4"},
		{AggMin, "1"},
		{AggMax, "7"},
		{AggCount, "3"},
		{AggSize, "4"},
		{AggNunique, "3"},
		{AggStd, "3"},
		{AggFirst, "4"},
		{AggLast, "7"},
	}
	for _, tt := range tests {
		t.Run(string(tt.fn), func(t *testing.T) {
			got, err := Reduce(tt.fn, vals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestReduceRejectsStrings(t *testing.T) {
	_, err := Reduce(AggSum, []Value{Str("a")})
	assert.ErrorContains(t, err, "numeric")

	v, err := Reduce(AggMax, []Value{Str("apple"), Str("pear")})
	require.NoError(t, err)
	assert.Equal(t, "pear", v.Str)
}

func TestReduceEmpty(t *testing.T) {
	v, err := Reduce(AggMean, nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = Reduce(AggSum, nil)
	require.NoError(t, err)
	assert.Equal(t, "0", v.String())
}

func TestParseAggFunc(t *testing.T) {
	fn, err := ParseAggFunc("Average")
	require.NoError(t, err)
	assert.Equal(t, AggMean, fn)

	_, err = ParseAggFunc("mode")
	assert.Error(t, err)
}

func TestAggregateSortsKeysAndDropsNulls(t *testing.T) {
	tbl := salesTable(t)
	out, err := tbl.Aggregate([]string{"Region"}, []AggSpec{
		{Column: "Revenue", Func: AggSum},
		{Func: AggSize},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Revenue", "size"}, out.Columns())

	region, _ := out.Column("Region")
	revenue, _ := out.Column("Revenue")
	size, _ := out.Column("size")
	assert.Equal(t, []string{"East", "North", "South"}, cells(region))
	assert.Equal(t, []string{"75", "150", "250"}, cells(revenue))
	assert.Equal(t, []string{"1", "2", "1"}, cells(size))
}

func TestValueCounts(t *testing.T) {
	tbl := salesTable(t)
	vc, err := tbl.ValueCounts("Region")
	require.NoError(t, err)
	region, _ := vc.Column("Region")
	count, _ := vc.Column("count")
	assert.Equal(t, []string{"North", "South", "East"}, cells(region))
	assert.Equal(t, []string{"2", "1", "1"}, cells(count))
}

func TestReduceColumns(t *testing.T) {
	tbl := salesTable(t)
	out, err := tbl.ReduceColumns(AggSum, "Revenue", "Units")
	require.NoError(t, err)
	sum, _ := out.Column("sum")
	assert.Equal(t, []string{"485", "10"}, cells(sum))
}

func TestPivot(t *testing.T) {
	tbl := MustNewTable(
		NewColumn("Region", []Value{Str("North"), Str("North"), Str("South"), Str("South")}),
		NewColumn("Quarter", []Value{Str("Q1"), Str("Q2"), Str("Q1"), Str("Q1")}),
		NewColumn("Revenue", []Value{Num(10), Num(20), Num(30), Num(50)}),
	)

	out, err := tbl.Pivot(PivotSpec{
		Index:     []string{"Region"},
		Columns:   "Quarter",
		Values:    []string{"Revenue"},
		AggFunc:   AggSum,
		FillValue: Num(0),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Q1", "Q2"}, out.Columns())
	q1, _ := out.Column("Q1")
	q2, _ := out.Column("Q2")
	assert.Equal(t, []string{"10", "80"}, cells(q1))
	assert.Equal(t, []string{"20", "0"}, cells(q2))

	mean, err := tbl.Pivot(PivotSpec{Index: []string{"Region"}})
	require.NoError(t, err)
	rev, _ := mean.Column("Revenue")
	assert.Equal(t, []string{"15", "40"}, cells(rev))
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatInt(1234567))
	assert.Equal(t, "-1,000", FormatInt(-1000))
}

func TestBuildTable(t *testing.T) {
	tbl := salesTable(t)
	data := BuildTable(tbl, WithTitle("Sales"), WithMaxRows(2), WithTotals(true))
	assert.Equal(t, "Sales", data.Title)
	assert.Len(t, data.Rows, 2)
	assert.True(t, data.Truncated)
	assert.Equal(t, 5, data.TotalRows)
	assert.Equal(t, "right", data.Columns[1].Align)
	require.NotNil(t, data.Summary)
	assert.Equal(t, "485", data.Summary.Values["Revenue"])

	empty := BuildTable(nil)
	assert.Empty(t, empty.Rows)
}
