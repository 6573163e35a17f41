package translator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/llm"
)

// Translator turns natural-language requests into expressions via an LLM.
type Translator struct {
	client llm.Client
	logger *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the event logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// New creates a translator over an LLM client.
func New(client llm.Client, opts ...Option) *Translator {
	t := &Translator{client: client}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = eventlog.OrDefault(t.logger)
	return t
}

// Translate builds the category prompt, asks the model and extracts the
// expression. An unknown category is the only error; every other failure
// comes back as an absent Result with Err set.
func (t *Translator) Translate(ctx context.Context, req Request) (Result, error) {
	prompt, err := BuildPrompt(req.Category, req.Text, req.Columns)
	if err != nil {
		return Result{}, err
	}
	res := Result{Prompt: prompt}

	if t.client == nil {
		res.Err = fmt.Errorf("no language model configured")
		t.fail(req, res, 0)
		return res, nil
	}

	start := time.Now()
	raw, err := t.client.Invoke(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("llm call failed: %w", err)
		t.fail(req, res, elapsed)
		return res, nil
	}
	res.Raw = raw

	expr, err := Extract(raw)
	if err != nil {
		res.Err = err
		t.fail(req, res, elapsed)
		return res, nil
	}
	res.Expression = expr

	t.logger.Info(eventlog.Translated,
		"category", string(req.Category),
		"request", req.Text,
		"expression", expr,
		"elapsed", elapsed.Seconds())
	return res, nil
}

func (t *Translator) fail(req Request, res Result, elapsed time.Duration) {
	t.logger.Warn(eventlog.TranslationFailed,
		"category", string(req.Category),
		"request", req.Text,
		"response", truncate(res.Raw, 200),
		"error", res.Err.Error(),
		"elapsed", elapsed.Seconds())
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
