package engine

// ============================================================================
// RENDER OPTIONS: Functional options for BuildTable()
// ============================================================================

// RenderOption configures rendering via functional options pattern.
type RenderOption func(*renderConfig)

type renderConfig struct {
	Title   string
	MaxRows int  // 0 = all rows
	Totals  bool // add a Summary with numeric column totals
}

// WithTitle sets the table title.
func WithTitle(title string) RenderOption {
	return func(c *renderConfig) {
		c.Title = title
	}
}

// WithMaxRows limits the rendered rows. 0 renders everything.
func WithMaxRows(n int) RenderOption {
	return func(c *renderConfig) {
		c.MaxRows = n
	}
}

// WithTotals adds a totals row for numeric columns.
func WithTotals(enabled bool) RenderOption {
	return func(c *renderConfig) {
		c.Totals = enabled
	}
}

// applyOptions creates a config from functional options.
func applyOptions(opts []RenderOption) *renderConfig {
	cfg := &renderConfig{
		MaxRows: 100,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
