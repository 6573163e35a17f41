package translator

import (
	"regexp"
	"strings"
)

// ============================================================================
// RESPONSE PARSER: Extracts the expression from the model's reply
// ============================================================================

var (
	bindingToken = regexp.MustCompile(`\b` + Binding + `\b`)
	assignPrefix = regexp.MustCompile(`^result\s*=\s*`)
)

// Extract pulls an expression out of a model reply. It strips Markdown code
// fences, keeps the first non-empty line, drops a leading "result =" and
// accepts the text only if it references the table binding.
func Extract(response string) (string, error) {
	code := strings.TrimSpace(response)
	if code == "" {
		return "", ErrEmptyResponse
	}

	// Clean up response: keep only the first fenced block if present
	if start := strings.Index(code, "```"); start >= 0 {
		body := code[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLanguageTag(body[:nl]) {
			body = body[nl+1:]
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		code = strings.TrimSpace(body)
	}

	code = firstLine(code)
	code = assignPrefix.ReplaceAllString(code, "")
	code = strings.TrimSpace(strings.TrimSuffix(code, ";"))

	if code == "" {
		return "", ErrEmptyResponse
	}
	if !bindingToken.MatchString(code) {
		return "", ErrNoBinding
	}
	return code, nil
}

// firstLine returns the first line with any content, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '+') {
			return false
		}
	}
	return true
}
