package expr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/sheetql/engine"
)

func day(y int, m time.Month, d int) engine.Value {
	return engine.Timestamp(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func sales() *engine.Table {
	return engine.MustNewTable(
		engine.NewColumn("Region", []engine.Value{
			engine.Str("North"), engine.Str("South"), engine.Str("North"), engine.Str("East"), engine.Str("South"),
		}),
		engine.NewColumn("Product", []engine.Value{
			engine.Str("Widget"), engine.Str("Gadget"), engine.Str("Gadget"), engine.Str("Widget"), engine.Str("Widget"),
		}),
		engine.NewColumn("Revenue", []engine.Value{
			engine.Num(120), engine.Num(80), engine.Num(200), engine.Null(), engine.Num(50),
		}),
		engine.NewColumn("Units", []engine.Value{
			engine.Num(3), engine.Num(2), engine.Num(5), engine.Num(1), engine.Num(4),
		}),
		engine.NewColumn("Date", []engine.Value{
			day(2024, 1, 5), day(2024, 2, 10), day(2024, 3, 15), day(2024, 3, 20), day(2023, 12, 31),
		}),
	)
}

func eval(t *testing.T, src string, opts ...Option) *engine.Table {
	t.Helper()
	out, err := Eval(context.Background(), src, sales(), opts...)
	require.NoError(t, err, src)
	return out
}

func col(t *testing.T, tbl *engine.Table, name string) []string {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok, "missing column %q in %v", name, tbl.Columns())
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.String()
	}
	return out
}

func TestFilterRows(t *testing.T) {
	cases := []struct {
		src  string
		rows int
	}{
		{"df[df['Region'] == 'North']", 2},
		{"df[(df['Revenue'] > 100) & (df['Region'] != 'South')]", 2},
		{"df[(df.Units < 2) | (df.Units > 4)]", 2},
		{"df[~(df['Region'] == 'North')]", 3},
		{"df[df['Region'].isin(['East', 'South'])]", 3},
		{"df[df['Units'].between(2, 4)]", 3},
		{"df[df['Units'].between(2, 4, inclusive='neither')]", 1},
		{"df[df['Product'].str.contains('widg', case=False)]", 3},
		{"df[df['Product'].str.startswith('G')]", 2},
		{"df[df['Date'] >= '2024-03-01']", 2},
		{"df[df['Date'].dt.year == 2023]", 1},
		{"df[df['Revenue'].isna()]", 1},
		{"df[df['Revenue'].notna()]", 4},
		{"df.query('`Units` >= 3 and Region in [\"North\", \"South\"]')", 3},
		{"df.query('Region == \"North\" or Revenue < 60')", 3},
		{"df[:2]", 2},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.rows, eval(t, tc.src).NumRows())
		})
	}
}

func TestNullComparisons(t *testing.T) {
	// Null is unequal to everything and fails every ordering.
	assert.Equal(t, 4, eval(t, "df[df['Revenue'] != 80]").NumRows())
	assert.Equal(t, 4, eval(t, "df[df['Revenue'] > 0]").NumRows())
	assert.Equal(t, 0, eval(t, "df[df['Revenue'] == None]").NumRows())
}

func TestNorthFilterKeepsColumns(t *testing.T) {
	out := eval(t, "df[df['Region'] == 'North']")
	assert.Equal(t, []string{"Region", "Product", "Revenue", "Units", "Date"}, out.Columns())
	assert.Equal(t, []string{"120", "200"}, col(t, out, "Revenue"))
}

func TestScalarResult(t *testing.T) {
	out := eval(t, "df['Revenue'].sum()")
	assert.Equal(t, []string{"result"}, out.Columns())
	assert.Equal(t, []string{"450"}, col(t, out, "result"))

	assert.Equal(t, []string{"5"}, col(t, eval(t, "len(df)"), "result"))
	assert.Equal(t, []string{"3"}, col(t, eval(t, "df.Region.nunique()"), "result"))
	assert.Equal(t, []string{"112.5"}, col(t, eval(t, "df['Revenue'].mean()"), "result"))
}

func TestArithmetic(t *testing.T) {
	out := eval(t, "(df['Revenue'] / df['Units']).round(1)")
	assert.Equal(t, []string{"40", "40", "40", "", "12.5"}, col(t, out, "Revenue"))

	out = eval(t, "df['Units'] * 2 + 1")
	assert.Equal(t, []string{"7", "5", "11", "3", "9"}, col(t, out, "Units"))

	out = eval(t, "df['Units'] % 2")
	assert.Equal(t, []string{"1", "0", "1", "1", "0"}, col(t, out, "Units"))
}

func TestProjectionAndLoc(t *testing.T) {
	out := eval(t, "df[['Product', 'Units']]")
	assert.Equal(t, []string{"Product", "Units"}, out.Columns())

	out = eval(t, "df.loc[df['Units'] > 2, ['Region', 'Units']]")
	assert.Equal(t, []string{"Region", "Units"}, out.Columns())
	assert.Equal(t, []string{"3", "5", "4"}, col(t, out, "Units"))

	out = eval(t, "df.loc[:, ['Product']]")
	assert.Equal(t, 5, out.NumRows())
	assert.Equal(t, []string{"Product"}, out.Columns())

	out = eval(t, "df.loc[df['Revenue'].idxmax(), 'Product']")
	assert.Equal(t, []string{"Gadget"}, col(t, out, "result"))
}

func TestAllRowsMarkerSkipsStringLiterals(t *testing.T) {
	tags := engine.MustNewTable(
		engine.NewColumn("Tag", []engine.Value{engine.Str("[:, x]"), engine.Str("y"), engine.Str(`say "[:, z]"`)}),
		engine.NewColumn("N", []engine.Value{engine.Num(1), engine.Num(2), engine.Num(3)}),
	)
	cases := []struct {
		src  string
		rows int
	}{
		{"df[df['Tag'] == '[:, x]']", 1},
		{`df[df["Tag"] == "[:, x]"]`, 1},
		{`df[df['Tag'] == 'say "[:, z]"']`, 1},
		{`df[df['Tag'] == "it\'s [:, x]"]`, 0},
		{"df.loc[:, ['Tag']]", 3},
		{"df.loc[df['Tag'] == '[:, x]', ['N']]", 1},
	}
	for _, tt := range cases {
		out, err := Eval(context.Background(), tt.src, tags)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.rows, out.NumRows(), tt.src)
	}
	assert.Equal(t, "df.loc["+allRowsName+", 'a']", markAllRows("df.loc[ : , 'a']"))
	assert.Equal(t, "x == '[:,'", markAllRows("x == '[:,'"))
}

func TestSorting(t *testing.T) {
	out := eval(t, "df.sort_values('Revenue', ascending=False).head(2)")
	assert.Equal(t, []string{"200", "120"}, col(t, out, "Revenue"))

	out = eval(t, "df.sort_values(by=['Region', 'Units'], ascending=[True, False])")
	assert.Equal(t, []string{"East", "North", "North", "South", "South"}, col(t, out, "Region"))
	assert.Equal(t, []string{"1", "5", "3", "4", "2"}, col(t, out, "Units"))

	out = eval(t, "df.nlargest(1, 'Units')")
	assert.Equal(t, []string{"Gadget"}, col(t, out, "Product"))

	out = eval(t, "df.nsmallest(2, 'Units')[['Units']]")
	assert.Equal(t, []string{"1", "2"}, col(t, out, "Units"))
}

func TestGroupBy(t *testing.T) {
	out := eval(t, "df.groupby('Region')['Revenue'].sum()")
	assert.Equal(t, []string{"Region", "Revenue"}, out.Columns())
	assert.Equal(t, []string{"East", "North", "South"}, col(t, out, "Region"))
	assert.Equal(t, []string{"0", "320", "130"}, col(t, out, "Revenue"))

	out = eval(t, "df.groupby('Region')['Revenue'].sum().sort_values(ascending=False).reset_index()")
	assert.Equal(t, []string{"North", "South", "East"}, col(t, out, "Region"))

	out = eval(t, "df.groupby('Region').size()")
	assert.Equal(t, []string{"1", "2", "2"}, col(t, out, "size"))

	out = eval(t, "df.groupby(['Region', 'Product']).Units.max()")
	assert.Equal(t, []string{"Region", "Product", "Units"}, out.Columns())
	assert.Equal(t, 5, out.NumRows())

	out = eval(t, "df.groupby('Region').mean()")
	assert.Equal(t, []string{"Region", "Revenue", "Units"}, out.Columns())
}

func TestGroupByAgg(t *testing.T) {
	out := eval(t, "df.groupby('Region').agg({'Revenue': 'sum', 'Units': 'max'})")
	assert.Equal(t, []string{"Region", "Revenue", "Units"}, out.Columns())
	assert.Equal(t, []string{"1", "5", "4"}, col(t, out, "Units"))

	out = eval(t, "df.groupby('Region').agg(total=('Revenue', 'sum'), n=('Units', 'count'))")
	assert.Equal(t, []string{"Region", "total", "n"}, out.Columns())
	assert.Equal(t, []string{"1", "2", "2"}, col(t, out, "n"))

	out = eval(t, "df.groupby('Region')['Units'].agg(['min', 'max'])")
	assert.Equal(t, []string{"Region", "min", "max"}, out.Columns())

	out = eval(t, "df.groupby('Product').agg({'Units': ['sum', 'mean']})")
	assert.Equal(t, []string{"Product", "Units_sum", "Units_mean"}, out.Columns())
}

func TestPivotTable(t *testing.T) {
	out := eval(t, "df.pivot_table(index='Region', columns='Product', values='Revenue', aggfunc='sum')")
	assert.Equal(t, []string{"Region", "Gadget", "Widget"}, out.Columns())
	assert.Equal(t, []string{"", "200", "80"}, col(t, out, "Gadget"))
}

func TestValueCountsAndUnique(t *testing.T) {
	out := eval(t, "df['Region'].value_counts()")
	assert.Equal(t, []string{"Region", "count"}, out.Columns())
	assert.Equal(t, []string{"North", "South", "East"}, col(t, out, "Region"))
	assert.Equal(t, []string{"2", "2", "1"}, col(t, out, "count"))

	out = eval(t, "df['Product'].unique()")
	assert.Equal(t, []string{"Widget", "Gadget"}, col(t, out, "Product"))
}

func TestFrameHelpers(t *testing.T) {
	out := eval(t, "df.fillna({'Revenue': 0})")
	assert.Equal(t, []string{"120", "80", "200", "0", "50"}, col(t, out, "Revenue"))

	assert.Equal(t, 4, eval(t, "df.dropna()").NumRows())
	assert.Equal(t, 3, eval(t, "df.drop_duplicates(subset=['Region'])").NumRows())

	out = eval(t, "df.rename(columns={'Revenue': 'Sales'})[['Sales']]")
	assert.Equal(t, []string{"Sales"}, out.Columns())

	out = eval(t, "df.sum()")
	assert.Equal(t, []string{"column", "sum"}, out.Columns())
	assert.Equal(t, []string{"Revenue", "Units"}, col(t, out, "column"))
}

func TestColumnResolverHook(t *testing.T) {
	var asked []string
	resolve := WithResolver(func(_ context.Context, name string, columns []string) (string, bool) {
		asked = append(asked, name)
		if name == "revenue" {
			return "Revenue", true
		}
		return "", false
	})
	out := eval(t, "df['revenue'].sum()", resolve)
	assert.Equal(t, []string{"450"}, col(t, out, "result"))
	assert.Equal(t, []string{"revenue"}, asked)

	_, err := Eval(context.Background(), "df['profit']", sales(), resolve)
	assert.ErrorIs(t, err, engine.ErrColumnNotFound)
}

func TestRejectsOutsideGrammar(t *testing.T) {
	cases := []struct {
		src  string
		want error
	}{
		{"pd.DataFrame()", ErrUndefined},
		{"__import__('os').system('ls')", ErrUndefined},
		{"open('/etc/passwd')", ErrUndefined},
		{"import os", ErrSyntax},
		{"df; df", ErrNotExpression},
		{"[x for x in df]", ErrUnsupported},
		{"df['Revenue'].apply(len)", ErrUnsupported},
		{"df.groupby('Region')", ErrType},
		{"", ErrNotExpression},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			_, err := Eval(context.Background(), tc.src, sales())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestErrorCarriesPosition(t *testing.T) {
	_, err := Eval(context.Background(), "df['Nope']", sales())
	require.Error(t, err)

	var xe *Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, int32(1), xe.Pos.Line)
	assert.ErrorIs(t, err, engine.ErrColumnNotFound)
	assert.Contains(t, err.Error(), "Nope")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Eval(ctx, "df[df['Units'] > 1]", sales())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgramIsReusable(t *testing.T) {
	p, err := Compile("df[df['Units'] > 2]")
	require.NoError(t, err)
	assert.Equal(t, "df[df['Units'] > 2]", p.Source())

	first, err := p.Eval(context.Background(), sales())
	require.NoError(t, err)
	small, err := p.Eval(context.Background(), sales().Head(2))
	require.NoError(t, err)
	assert.Equal(t, 3, first.NumRows())
	assert.Equal(t, 1, small.NumRows())
}

func TestQuery(t *testing.T) {
	out, err := Query(context.Background(), sales(), "Units > 2 and Product == 'Widget'")
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South"}, col(t, out, "Region"))
}
