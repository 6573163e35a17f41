package translator

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// TRANSLATOR: AI boundary for natural language → expression
// ============================================================================
// The Translator turns a request plus an operation category into a single
// expression over the table bound as df. It never sees cell data, only the
// column names and the user's words. The expression it returns is untrusted
// until the sandbox has evaluated it.
// ============================================================================

// Binding is the name the table is bound to inside expressions.
const Binding = "df"

// Category selects the prompt template.
type Category string

const (
	Filter    Category = "filter"
	Aggregate Category = "aggregate"
	Sort      Category = "sort"
	Pivot     Category = "pivot"
)

// Categories lists the closed set of operation categories.
func Categories() []Category {
	return []Category{Filter, Aggregate, Sort, Pivot}
}

var (
	// ErrUnknownCategory is returned for any category outside Categories().
	// It is the only error Translate returns.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrNoBinding marks a response that never mentions the table binding.
	ErrNoBinding = errors.New("response does not reference " + Binding)
	// ErrEmptyResponse marks a blank model reply.
	ErrEmptyResponse = errors.New("empty response")
)

// ParseCategory validates a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid reports whether c is one of the four categories.
func (c Category) Valid() bool {
	switch c {
	case Filter, Aggregate, Sort, Pivot:
		return true
	}
	return false
}

// Request is one natural-language submission.
type Request struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
	Columns  []string `json:"columns"`
}

// Result is a translation. Expression is empty when no usable expression
// came back; Err then says why.
type Result struct {
	Expression string `json:"expression,omitempty"`
	Prompt     string `json:"-"`
	Raw        string `json:"raw,omitempty"`
	Err        error  `json:"-"`
}

// Absent reports whether the translation produced nothing usable.
func (r Result) Absent() bool { return r.Expression == "" }
