package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/spektr-org/sheetql/llm"
)

// Method names the strategy that produced a resolution.
type Method string

const (
	MethodExact   Method = "exact"
	MethodSynonym Method = "synonym"
	MethodFuzzy   Method = "fuzzy"
	MethodLLM     Method = "llm"
	MethodNone    Method = "none"
)

const (
	DefaultSynonymThreshold = 70
	DefaultFuzzyThreshold   = 80
)

// Match is a candidate picked by a strategy.
type Match struct {
	Column string
	Score  float64
}

// Strategy is one step of the resolution cascade. Attempt returns ok=false
// when it has no answer; an error means the strategy itself broke.
type Strategy interface {
	Method() Method
	Attempt(ctx context.Context, query string, candidates CandidateSet) (Match, bool, error)
}

// ExactStrategy matches on normalized equality.
type ExactStrategy struct{}

func (ExactStrategy) Method() Method { return MethodExact }

func (ExactStrategy) Attempt(_ context.Context, query string, candidates CandidateSet) (Match, bool, error) {
	q := Normalize(query)
	for _, c := range candidates.names {
		if Normalize(c) == q {
			return Match{Column: c, Score: 100}, true, nil
		}
	}
	return Match{}, false, nil
}

// SynonymStrategy looks the query up in a vocabulary and fuzzy-matches each
// synonym against the candidates.
type SynonymStrategy struct {
	Synonyms  Synonyms
	Threshold float64
}

func (SynonymStrategy) Method() Method { return MethodSynonym }

func (s SynonymStrategy) Attempt(_ context.Context, query string, candidates CandidateSet) (Match, bool, error) {
	var m Match
	found := false
	for _, syn := range s.Synonyms.Lookup(query) {
		col, score := best(syn, candidates)
		if score >= s.Threshold && (!found || score > m.Score) {
			m, found = Match{Column: col, Score: score}, true
		}
	}
	return m, found, nil
}

// FuzzyStrategy accepts the best-scoring candidate at or above Threshold.
type FuzzyStrategy struct {
	Threshold float64
}

func (FuzzyStrategy) Method() Method { return MethodFuzzy }

func (s FuzzyStrategy) Attempt(_ context.Context, query string, candidates CandidateSet) (Match, bool, error) {
	col, score := best(query, candidates)
	if candidates.Len() == 0 || score < s.Threshold {
		return Match{}, false, nil
	}
	return Match{Column: col, Score: score}, true, nil
}

// LLMStrategy asks the model to choose. Only a verbatim candidate counts.
type LLMStrategy struct {
	Client llm.Client
}

func (LLMStrategy) Method() Method { return MethodLLM }

func (s LLMStrategy) Attempt(ctx context.Context, query string, candidates CandidateSet) (Match, bool, error) {
	if s.Client == nil || candidates.Len() == 0 {
		return Match{}, false, nil
	}
	reply, err := s.Client.Invoke(ctx, SuggestionPrompt(query, candidates.names))
	if err != nil {
		return Match{}, false, fmt.Errorf("llm suggestion: %w", err)
	}
	reply = strings.Trim(strings.TrimSpace(reply), "\"'")
	if !candidates.Contains(reply) {
		return Match{}, false, nil
	}
	return Match{Column: reply}, true, nil
}

// SuggestionPrompt is the instruction sent to the model for a tie-break.
func SuggestionPrompt(header string, candidates []string) string {
	return fmt.Sprintf(
		"Given the ambiguous column name '%s' and the available columns: %s, "+
			"suggest the most likely correct column name. Return only the best match or None.",
		header, llm.ListLiteral(candidates))
}
