package resolver

// Synonyms is an immutable, bidirectional vocabulary of column-name
// abbreviations. Keys and values are stored normalized.
type Synonyms struct {
	terms map[string][]string
}

// defaultPairs are the business abbreviations every resolver knows.
var defaultPairs = map[string][]string{
	"qty":  {"quantity"},
	"amt":  {"amount"},
	"cust": {"customer"},
	"prod": {"product"},
	"desc": {"description"},
}

// DefaultSynonyms returns the built-in vocabulary.
func DefaultSynonyms() Synonyms {
	return NewSynonyms(defaultPairs)
}

// NewSynonyms builds a vocabulary from term → synonyms pairs. Every pair is
// registered in both directions.
func NewSynonyms(pairs map[string][]string) Synonyms {
	return Synonyms{}.With(pairs)
}

// With returns a new vocabulary extended with more pairs. The receiver is
// left unchanged.
func (s Synonyms) With(pairs map[string][]string) Synonyms {
	terms := make(map[string][]string, len(s.terms)+2*len(pairs))
	for k, v := range s.terms {
		terms[k] = append([]string(nil), v...)
	}
	add := func(from, to string) {
		for _, existing := range terms[from] {
			if existing == to {
				return
			}
		}
		terms[from] = append(terms[from], to)
	}
	for term, syns := range pairs {
		t := Normalize(term)
		if t == "" {
			continue
		}
		for _, syn := range syns {
			n := Normalize(syn)
			if n == "" || n == t {
				continue
			}
			add(t, n)
			add(n, t)
		}
	}
	return Synonyms{terms: terms}
}

// Lookup returns the synonyms of a term, normalizing it first.
func (s Synonyms) Lookup(term string) []string {
	return append([]string(nil), s.terms[Normalize(term)]...)
}

// Len returns the number of distinct terms.
func (s Synonyms) Len() int { return len(s.terms) }
