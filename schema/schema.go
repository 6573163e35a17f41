package schema

// ============================================================================
// SCHEMA: Column type inference for freshly loaded sheets
// ============================================================================
// Workbook readers hand over raw cell text. Infer decides one Kind per
// column and converts every cell, coercing the stragglers that do not parse
// to null, so the rest of the pipeline only sees typed columns.
// ============================================================================

// Options controls inference thresholds.
type Options struct {
	SampleSize      int     // rows inspected for date detection; 0 = all
	BoolThreshold   float64 // share of non-null cells that must be booleans
	NumberThreshold float64 // share of non-null cells that must be numbers
	DateThreshold   float64 // share of sampled cells that must be dates (strictly above)
}

// DefaultOptions returns the thresholds used for sheet loading.
func DefaultOptions() Options {
	return Options{
		SampleSize:      100,
		BoolThreshold:   0.8,
		NumberThreshold: 0.8,
		DateThreshold:   0.5,
	}
}
