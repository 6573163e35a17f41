package resolver

// CandidateSet is an immutable snapshot of the column names a header may
// resolve to. Duplicates are dropped, first occurrence kept.
type CandidateSet struct {
	names []string
	set   map[string]struct{}
}

// NewCandidateSet snapshots names.
func NewCandidateSet(names []string) CandidateSet {
	c := CandidateSet{
		names: make([]string, 0, len(names)),
		set:   make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		if _, dup := c.set[n]; dup {
			continue
		}
		c.set[n] = struct{}{}
		c.names = append(c.names, n)
	}
	return c
}

// Names returns a copy of the candidates in order.
func (c CandidateSet) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of candidates.
func (c CandidateSet) Len() int { return len(c.names) }

// Contains reports whether name is a candidate, verbatim.
func (c CandidateSet) Contains(name string) bool {
	_, ok := c.set[name]
	return ok
}
