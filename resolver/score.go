package resolver

import (
	"strings"

	edlib "github.com/hbollon/go-edlib"
)

// Ratio is the normalized indel similarity of two strings on a 0–100 scale:
// 200 * LCS(a, b) / (len(a) + len(b)). Two empty strings score 100.
func Ratio(a, b string) float64 {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	return 200 * float64(edlib.LCS(a, b)) / float64(total)
}

// Score compares two column names after normalization. Abbreviations drop
// vowels ("qtty", "amt"), so when either side already looks like one the
// ratio of the consonant skeletons is also taken and the better score wins.
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 0
	}
	s := Ratio(na, nb)
	ka, kb := skeleton(na), skeleton(nb)
	if ka != na && kb != nb {
		return s
	}
	if k := Ratio(ka, kb); k > s {
		s = k
	}
	return s
}

// skeleton keeps the first character and every later non-vowel.
func skeleton(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && strings.ContainsRune("aeiou", r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// best returns the highest-scoring candidate. Ties keep the earliest.
func best(query string, candidates CandidateSet) (string, float64) {
	var (
		top   string
		score = -1.0
	)
	for _, c := range candidates.names {
		if s := Score(query, c); s > score {
			top, score = c, s
		}
	}
	return top, score
}
