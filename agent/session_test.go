package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/llm"
	"github.com/spektr-org/sheetql/resolver"
	"github.com/spektr-org/sheetql/sandbox"
	"github.com/spektr-org/sheetql/translator"
)

const salesCSV = "Region,Product,Revenue\n" +
	"North,Widget,100\n" +
	"South,Gadget,250\n" +
	"North,Gadget,75\n" +
	"East,Widget,40\n"

// scripted answers every prompt with the next reply.
func scripted(replies ...string) llm.Client {
	return llm.ClientFunc(func(context.Context, string) (string, error) {
		if len(replies) == 0 {
			return "", errors.New("script exhausted")
		}
		r := replies[0]
		replies = replies[1:]
		return r, nil
	})
}

func newSession(t *testing.T, client llm.Client, opts ...Option) *Session {
	t.Helper()
	ex, err := sandbox.New()
	require.NoError(t, err)
	s := New(translator.New(client), ex, resolver.NewDefault(resolver.DefaultSynonyms(), client), opts...)
	require.NoError(t, s.LoadWorkbookBytes("sales.csv", []byte(salesCSV)))
	return s
}

func TestRunFilterEndToEnd(t *testing.T) {
	rec := eventlog.NewRecorder()
	s := newSession(t, scripted("```python\ndf[df['Region'] == 'North']\n```"),
		WithLogger(rec.Logger()), WithIDs(func() string { return "q-1" }))

	out, err := s.Run(context.Background(), translator.Filter, "Show rows where Region is North")
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "q-1", out.ID)
	assert.Equal(t, []State{Received, Translating, Translated, Executing, Executed}, out.Trail)
	assert.Equal(t, "df[df['Region'] == 'North']", out.Expression)
	assert.Equal(t, 2, out.Table.NumRows())
	assert.True(t, strings.HasPrefix(out.Message, "Query executed in "))

	events := rec.Events(eventlog.QueryReceived)
	require.Len(t, events, 1)
	assert.Equal(t, "q-1", events[0].Attrs["id"])
	assert.Equal(t, "filter", events[0].Attrs["category"])
}

func TestRunTranslationFailed(t *testing.T) {
	s := newSession(t, scripted("   "))

	out, err := s.Run(context.Background(), translator.Aggregate, "total revenue")
	require.NoError(t, err)
	assert.Equal(t, TranslationFailed, out.State)
	assert.True(t, out.State.Terminal())
	assert.Equal(t, MsgTranslationFailed, out.Message)
	assert.Error(t, out.Err)
	assert.Nil(t, out.Table)
	assert.Empty(t, out.Expression)
}

func TestRunExecutionFailed(t *testing.T) {
	s := newSession(t, scripted("df['Profit'].sum()"))

	out, err := s.Run(context.Background(), translator.Aggregate, "total profit")
	require.NoError(t, err)
	assert.Equal(t, ExecutionFailed, out.State)
	assert.Equal(t, []State{Received, Translating, Translated, Executing, ExecutionFailed}, out.Trail)
	assert.Equal(t, MsgExecutionFailed, out.Message)
	assert.Equal(t, "df['Profit'].sum()", out.Expression)
	assert.Nil(t, out.Table)
}

func TestRunRejectsUnknownCategory(t *testing.T) {
	s := newSession(t, scripted("df"))
	_, err := s.Run(context.Background(), translator.Category("chart"), "bar chart")
	assert.ErrorIs(t, err, translator.ErrUnknownCategory)
}

func TestRunNeedsSheet(t *testing.T) {
	ex, err := sandbox.New()
	require.NoError(t, err)
	s := New(translator.New(scripted("df")), ex, nil)

	_, err = s.Run(context.Background(), translator.Filter, "anything")
	assert.ErrorIs(t, err, ErrNoSheet)
	_, err = s.Execute(context.Background(), "df")
	assert.ErrorIs(t, err, ErrNoSheet)
	assert.Nil(t, s.Columns())
	assert.Equal(t, resolver.MethodNone, s.Resolve(context.Background(), "rev").Method)
}

func TestExecuteSkipsTranslation(t *testing.T) {
	s := newSession(t, scripted())

	out, err := s.Execute(context.Background(), "df.groupby('Region')['Revenue'].sum()")
	require.NoError(t, err)
	require.True(t, out.OK(), out.Err)
	assert.Equal(t, []State{Received, Executing, Executed}, out.Trail)
	assert.Equal(t, 3, out.Table.NumRows())

	again, err := s.Execute(context.Background(), "df.groupby('Region')['Revenue'].sum()")
	require.NoError(t, err)
	assert.True(t, again.Cached)
}

func TestResolveAgainstFocusedSheet(t *testing.T) {
	s := newSession(t, scripted())

	res := s.Resolve(context.Background(), "revenue")
	assert.True(t, res.Found)
	assert.Equal(t, "Revenue", res.Column)

	res = s.Resolve(context.Background(), "Prodct")
	assert.True(t, res.Found)
	assert.Equal(t, "Product", res.Column)
}

func TestColumnHook(t *testing.T) {
	r := resolver.NewDefault(resolver.DefaultSynonyms(), nil)
	ex, err := sandbox.New(sandbox.WithColumnResolver(ColumnHook(r)))
	require.NoError(t, err)
	s := New(translator.New(nil), ex, r)
	require.NoError(t, s.LoadWorkbookBytes("sales.csv", []byte(salesCSV)))

	out, err := s.Execute(context.Background(), "df['revenue'].max()")
	require.NoError(t, err)
	require.True(t, out.OK(), out.Err)
	c, _ := out.Table.Column("result")
	assert.Equal(t, "250", c.Values[0].String())
}

func TestLoadWorkbookFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q3.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o600))

	ex, err := sandbox.New()
	require.NoError(t, err)
	s := New(translator.New(nil), ex, nil)
	require.NoError(t, s.LoadWorkbook(path))

	assert.Equal(t, []string{"q3"}, s.SheetNames())
	assert.Equal(t, "q3", s.Sheet())
	assert.Equal(t, []string{"Region", "Product", "Revenue"}, s.Columns())
	assert.Error(t, s.LoadSheet("missing"))
	assert.Equal(t, "q3", s.Sheet())
}

func TestSlowMessageQuotesConfiguredThreshold(t *testing.T) {
	ex, err := sandbox.New(sandbox.WithSlowThreshold(time.Nanosecond))
	require.NoError(t, err)
	s := New(translator.New(nil), ex, nil)
	require.NoError(t, s.LoadWorkbookBytes("sales.csv", []byte(salesCSV)))

	out, err := s.Execute(context.Background(), "df.head(2)")
	require.NoError(t, err)
	require.True(t, out.OK(), out.Err)
	assert.True(t, out.Slow)
	assert.Contains(t, out.Message, "exceeds the 1ns target")
	assert.NotContains(t, out.Message, sandbox.DefaultSlowThreshold.String())
}
