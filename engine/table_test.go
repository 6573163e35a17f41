package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		NewColumn("Region", []Value{Str("North"), Str("South"), Str("North"), Str("East"), Null()}),
		NewColumn("Revenue", []Value{Num(100), Num(250), Num(50), Num(75), Num(10)}),
		NewColumn("Units", []Value{Num(1), Num(5), Null(), Num(3), Num(1)}),
	)
	require.NoError(t, err)
	return tbl
}

func cells(c *Column) []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.String()
	}
	return out
}

func TestNewTableRejectsDuplicatesAndRagged(t *testing.T) {
	_, err := NewTable(NewColumn("a", []Value{Num(1)}), NewColumn("a", []Value{Num(2)}))
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewTable(NewColumn("a", []Value{Num(1)}), NewColumn("b", nil))
	assert.ErrorContains(t, err, "expected 1")
}

func TestColumnKind(t *testing.T) {
	assert.Equal(t, KindNumber, NewColumn("n", []Value{Num(1), Null()}).Kind)
	assert.Equal(t, KindString, NewColumn("m", []Value{Num(1), Str("x")}).Kind)
	assert.Equal(t, KindNull, NewColumn("e", []Value{Null()}).Kind)
}

func TestCloneIsIndependent(t *testing.T) {
	tbl := salesTable(t)
	cp := tbl.Clone()
	c, _ := cp.Column("Region")
	c.Values[0] = Str("Changed")

	orig, _ := tbl.Column("Region")
	assert.Equal(t, "North", orig.Values[0].Str)
	assert.Equal(t, tbl.Fingerprint(), salesTable(t).Fingerprint())
	assert.NotEqual(t, tbl.Fingerprint(), cp.Fingerprint())
}

func TestFilterAndWhere(t *testing.T) {
	tbl := salesTable(t)
	north, err := tbl.Where("Region", func(v Value) bool { return v.Equal(Str("North")) })
	require.NoError(t, err)
	assert.Equal(t, 2, north.NumRows())
	rev, _ := north.Column("Revenue")
	assert.Equal(t, []string{"100", "50"}, cells(rev))

	_, err = tbl.Filter([]bool{true})
	assert.Error(t, err)

	_, err = tbl.Where("Nope", func(Value) bool { return true })
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestInPredicate(t *testing.T) {
	tbl := salesTable(t)
	mask, err := tbl.Mask("Region", In([]Value{Str("north"), Str("EAST")}, true))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true, false}, mask)

	mask, err = tbl.Mask("Units", In([]Value{Num(1)}, false))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, false, true}, mask)
}

func TestSortNullsLast(t *testing.T) {
	tbl := salesTable(t)
	sorted, err := tbl.Sort(SortKey{Column: "Units", Descending: true})
	require.NoError(t, err)
	u, _ := sorted.Column("Units")
	assert.Equal(t, []string{"5", "3", "1", "1", ""}, cells(u))

	sorted, err = tbl.Sort(SortKey{Column: "Region"}, SortKey{Column: "Revenue", Descending: true})
	require.NoError(t, err)
	r, _ := sorted.Column("Revenue")
	assert.Equal(t, []string{"75", "100", "50", "250", "10"}, cells(r))
}

func TestSortMixedKindsFails(t *testing.T) {
	tbl := MustNewTable(NewColumn("x", []Value{Num(1), Str("a")}))
	_, err := tbl.Sort(SortKey{Column: "x"})
	assert.ErrorContains(t, err, "cannot compare")
}

func TestHeadTail(t *testing.T) {
	tbl := salesTable(t)
	assert.Equal(t, 2, tbl.Head(2).NumRows())
	assert.Equal(t, 5, tbl.Head(50).NumRows())
	tail := tbl.Tail(2)
	r, _ := tail.Column("Revenue")
	assert.Equal(t, []string{"75", "10"}, cells(r))
	assert.Equal(t, 3, tbl.Head(-2).NumRows())
}

func TestSelectAndRename(t *testing.T) {
	tbl := salesTable(t)
	sel, err := tbl.Select("Revenue", "Region")
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue", "Region"}, sel.Columns())

	renamed, err := tbl.Rename(map[string]string{"Revenue": "Sales"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Sales", "Units"}, renamed.Columns())

	_, err = tbl.Rename(map[string]string{"Revenue": "Region"})
	assert.Error(t, err)
}

func TestDropDuplicates(t *testing.T) {
	tbl := salesTable(t)
	dd, err := tbl.DropDuplicates("Region")
	require.NoError(t, err)
	// The null region row is kept once.
	assert.Equal(t, 4, dd.NumRows())
}

func TestValueEquality(t *testing.T) {
	assert.True(t, Num(1).Equal(Boolean(true)))
	assert.False(t, Null().Equal(Null()))
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, Timestamp(day).Equal(Timestamp(day)))
	assert.Equal(t, "2024-03-01", Timestamp(day).String())
	assert.Equal(t, "2.5", Num(2.5).String())
	assert.True(t, Num(3).Truthy())
}
