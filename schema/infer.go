package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/spektr-org/sheetql/engine"
)

// ============================================================================
// TYPE DETECTION
// ============================================================================
// Order matters: booleans, then numbers, then dates, then strings. Numbers
// are tried before dates so a column of plain years stays numeric.
// ============================================================================

// Infer picks a kind for a column of raw cells and converts them, using
// DefaultOptions.
func Infer(raw []string) (engine.Kind, []engine.Value) {
	return InferWith(raw, DefaultOptions())
}

// InferWith is Infer with explicit thresholds.
func InferWith(raw []string, opt Options) (engine.Kind, []engine.Value) {
	kind := DetectKind(raw, opt)
	values := make([]engine.Value, len(raw))
	for i, s := range raw {
		values[i] = Convert(s, kind)
	}
	return kind, values
}

// DetectKind classifies a column without converting it.
func DetectKind(raw []string, opt Options) engine.Kind {
	values := make([]string, 0, len(raw))
	for _, s := range raw {
		if !IsNullToken(s) {
			values = append(values, strings.TrimSpace(s))
		}
	}
	if len(values) == 0 {
		return engine.KindNull
	}

	boolCount, numCount := 0, 0
	for _, v := range values {
		if _, ok := ParseBool(v); ok {
			boolCount++
		}
		if _, ok := ParseNumber(v); ok {
			numCount++
		}
	}
	n := float64(len(values))
	if float64(boolCount) >= n*opt.BoolThreshold {
		return engine.KindBool
	}
	if float64(numCount) >= n*opt.NumberThreshold {
		return engine.KindNumber
	}

	sample := values
	if opt.SampleSize > 0 && len(sample) > opt.SampleSize {
		sample = sample[:opt.SampleSize]
	}
	dateCount := 0
	for _, v := range sample {
		if _, ok := ParseTime(v); ok {
			dateCount++
		}
	}
	if float64(dateCount) > float64(len(sample))*opt.DateThreshold {
		return engine.KindTime
	}
	return engine.KindString
}

// Convert parses one raw cell as kind. Cells that do not parse become null.
func Convert(s string, kind engine.Kind) engine.Value {
	if IsNullToken(s) {
		return engine.Null()
	}
	s = strings.TrimSpace(s)
	switch kind {
	case engine.KindBool:
		if b, ok := ParseBool(s); ok {
			return engine.Boolean(b)
		}
	case engine.KindNumber:
		if f, ok := ParseNumber(s); ok {
			return engine.Num(f)
		}
	case engine.KindTime:
		if t, ok := ParseTime(s); ok {
			return engine.Timestamp(t)
		}
	case engine.KindString:
		return engine.Str(s)
	}
	return engine.Null()
}

// IsNullToken reports whether a raw cell means "no value".
func IsNullToken(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "null", "NULL", "N/A", "n/a", "NaN", "nan", "None", "#N/A":
		return true
	}
	return false
}

// ParseNumber accepts plain numbers plus thousands separators, a leading
// currency symbol and a trailing percent sign.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	for _, sym := range []string{"$", "€", "£", "¥", "₹"} {
		s = strings.TrimPrefix(s, sym)
	}
	pct := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	if s == "" || strings.ContainsAny(s, "+- ") || !isDigitOrDot(s[0]) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if pct {
		f /= 100
	}
	if neg {
		f = -f
	}
	return f, true
}

func isDigitOrDot(c byte) bool {
	return c == '.' || (c >= '0' && c <= '9')
}

// ParseBool accepts true/false and yes/no in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"02-Jan-2006",
	"Jan-2006",
	"January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC3339,
}

// ParseTime tries the known date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
