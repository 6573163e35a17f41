package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/llm"
)

func staticLLM(reply string, err error) llm.Client {
	return llm.ClientFunc(func(context.Context, string) (string, error) { return reply, err })
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Customer Name": "customer_name",
		"Unit-Price ($)": "unitprice_",
		"  Qty ":        "__qty_",
		"Région":        "rgion",
		"already_norm":  "already_norm",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{"", "A b C", "x!@#y", "Ünïcode Header", "__", "Sales 2024 (Q1)", "tab\tsep"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), s)
	}
}

func TestScore(t *testing.T) {
	assert.Equal(t, 100.0, Score("Quantity", "quantity"))
	assert.GreaterOrEqual(t, Score("qtty", "quantity"), 80.0)
	assert.Less(t, Score("qtty", "amount"), 80.0)
	// Full words do not get the abbreviation bonus.
	assert.Less(t, Score("data", "date"), 80.0)
	assert.InDelta(t, 66.67, Ratio("qtty", "quantity"), 0.01)
}

func TestCandidateSetDropsDuplicates(t *testing.T) {
	set := NewCandidateSet([]string{"a", "b", "a", "c", "b"})
	assert.Equal(t, []string{"a", "b", "c"}, set.Names())
	assert.True(t, set.Contains("c"))
	assert.False(t, set.Contains("A"))
}

func TestSynonymsAreBidirectionalAndImmutable(t *testing.T) {
	base := DefaultSynonyms()
	assert.Equal(t, []string{"quantity"}, base.Lookup("QTY"))
	assert.Equal(t, []string{"qty"}, base.Lookup("quantity"))

	extended := base.With(map[string][]string{"rev": {"revenue", "Sales"}})
	assert.Equal(t, []string{"revenue", "sales"}, extended.Lookup("rev"))
	assert.Equal(t, []string{"rev"}, extended.Lookup("sales"))
	assert.Empty(t, base.Lookup("rev"))
}

func TestResolveCascade(t *testing.T) {
	ctx := context.Background()
	r := NewDefault(DefaultSynonyms(), staticLLM("Customer ID", nil))

	tests := []struct {
		name       string
		header     string
		candidates []string
		column     string
		method     Method
	}{
		{"exact after normalization", "customer name", []string{"Customer Name", "Amount"}, "Customer Name", MethodExact},
		{"synonym", "qty", []string{"Quantity", "Amount"}, "Quantity", MethodSynonym},
		{"synonym reverse", "Amount", []string{"amt", "qty"}, "amt", MethodSynonym},
		{"fuzzy", "qtty", []string{"quantity", "amount"}, "quantity", MethodFuzzy},
		{"fuzzy typo", "Reveneu", []string{"Region", "Revenue"}, "Revenue", MethodFuzzy},
		{"llm", "client", []string{"Customer ID", "Region"}, "Customer ID", MethodLLM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(ctx, tt.header, tt.candidates)
			require.True(t, res.Found)
			assert.Equal(t, tt.column, res.Column)
			assert.Equal(t, tt.method, res.Method)
		})
	}
}

func TestResolveNone(t *testing.T) {
	ctx := context.Background()
	for _, client := range []llm.Client{
		staticLLM("Something Else", nil),
		staticLLM("", errors.New("network down")),
		nil,
	} {
		r := NewDefault(DefaultSynonyms(), client)
		res := r.Resolve(ctx, "zzz", []string{"Region", "Revenue"})
		assert.False(t, res.Found)
		assert.Equal(t, MethodNone, res.Method)
		assert.Empty(t, res.Column)
	}
}

func TestResolveStripsQuotesFromLLM(t *testing.T) {
	r := NewDefault(DefaultSynonyms(), staticLLM("  'Region'\n", nil))
	res := r.Resolve(context.Background(), "territory", []string{"Region", "Revenue"})
	assert.Equal(t, MethodLLM, res.Method)
	assert.Equal(t, "Region", res.Column)
}

type panicky struct{}

func (panicky) Method() Method { return "panicky" }
func (panicky) Attempt(context.Context, string, CandidateSet) (Match, bool, error) {
	panic("boom")
}

type liar struct{}

func (liar) Method() Method { return "liar" }
func (liar) Attempt(context.Context, string, CandidateSet) (Match, bool, error) {
	return Match{Column: "Not A Column"}, true, nil
}

func TestResolveSurvivesBrokenStrategies(t *testing.T) {
	rec := eventlog.NewRecorder()
	r := New([]Strategy{panicky{}, liar{}, FuzzyStrategy{Threshold: 80}}, WithLogger(rec.Logger()))

	res := r.Resolve(context.Background(), "Regoin", []string{"Region"})
	assert.Equal(t, MethodFuzzy, res.Method)
	assert.Equal(t, "Region", res.Column)

	failures := rec.Events(eventlog.StrategyFailed)
	require.Len(t, failures, 1)
	assert.True(t, strings.Contains(failures[0].Attrs["error"].(string), "boom"))

	resolved := rec.Events(eventlog.ColumnResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "fuzzy", resolved[0].Attrs["method"])
	assert.Equal(t, []Method{"panicky", "liar", MethodFuzzy}, r.Methods())
}

func TestResolveDoesNotMutateCandidates(t *testing.T) {
	candidates := []string{"B", "A", "B"}
	NewDefault(DefaultSynonyms(), nil).Resolve(context.Background(), "a", candidates)
	assert.Equal(t, []string{"B", "A", "B"}, candidates)
}

func TestStrategyFailureNeverLogsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	cfg := llm.DefaultGeminiConfig("SECRET-KEY-123")
	cfg.Endpoint = endpoint
	cfg.RPS = 0
	rec := eventlog.NewRecorder()
	r := NewDefault(DefaultSynonyms(), llm.NewGemini(cfg), WithLogger(rec.Logger()))

	res := r.Resolve(context.Background(), "zzz", []string{"Region", "Revenue"})
	assert.False(t, res.Found)
	require.Len(t, rec.Events(eventlog.StrategyFailed), 1)

	for _, e := range rec.Events() {
		for k, v := range e.Attrs {
			assert.NotContains(t, fmt.Sprint(v), "SECRET-KEY-123", "%s.%s", e.Name, k)
		}
	}
}
