// Package llm is the boundary to the language model that writes expressions
// and breaks ties between column names.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrNoAPIKey is returned when a client is invoked without credentials.
var ErrNoAPIKey = errors.New("llm: API key is not set")

// Client sends a single prompt and returns the model's text reply.
// Transport and authentication failures are returned as errors.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Invoke calls f.
func (f ClientFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ListLiteral renders names as a bracketed, single-quoted list, the way
// column lists appear in prompts: ['Region', 'Revenue'].
func ListLiteral(names []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(n, "'", "\\'"))
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}
