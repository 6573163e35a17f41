package resolver

import "strings"

// Normalize lowercases s, drops every character outside [a-z0-9_ ] and
// turns spaces into underscores. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		case c == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}
