package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultGeminiConfig("test-key")
	cfg.Endpoint = srv.URL
	cfg.RPS = 0
	return NewGemini(cfg, WithHTTPClient(srv.Client()))
}

func TestGeminiInvoke(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+DefaultModel+":generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req geminiRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "hello", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"df.head()"}]}}]}`))
	})

	got, err := g.Invoke(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "df.head()", got)
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http status", http.StatusForbidden, `{"error":{"code":403}}`, "returned 403"},
		{"api error", http.StatusOK, `{"error":{"code":400,"message":"bad prompt"}}`, "bad prompt"},
		{"empty", http.StatusOK, `{"candidates":[]}`, "empty response"},
		{"garbage", http.StatusOK, `not json`, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := g.Invoke(context.Background(), "x")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGeminiRequiresKey(t *testing.T) {
	g := NewGemini(Config{})
	_, err := g.Invoke(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, DefaultModel, g.Model())
}

func TestGeminiHonoursCancelledContext(t *testing.T) {
	cfg := DefaultGeminiConfig("k")
	cfg.RPS = 0.001
	cfg.Burst = 1
	g := NewGemini(cfg)
	// Drain the only token.
	require.True(t, g.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Invoke(ctx, "x")
	assert.ErrorContains(t, err, "rate limiter")
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(_ context.Context, p string) (string, error) { return p + "!", nil })
	got, err := c.Invoke(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", got)
}

func TestGeminiTransportErrorOmitsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	cfg := DefaultGeminiConfig("SECRET-KEY-123")
	cfg.Endpoint = endpoint
	cfg.RPS = 0
	_, err := NewGemini(cfg).Invoke(context.Background(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	got := truncate("aé€z", 3) // é is 2 bytes, € is 3
	assert.Equal(t, "aé...", got)
	assert.True(t, utf8.ValidString(got))
}
