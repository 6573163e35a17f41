package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spektr-org/sheetql/agent"
	"github.com/spektr-org/sheetql/engine"
)

// ============================================================================
// OUTPUT TYPES
// ============================================================================

type sheetInfo struct {
	Sheets  []string `json:"sheets"`
	Current string   `json:"current"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

type resolveRow struct {
	Header string  `json:"header"`
	Column string  `json:"column,omitempty"`
	Method string  `json:"method"`
	Score  float64 `json:"score,omitempty"`
}

type outcomeOutput struct {
	agent.Outcome
	Error  string            `json:"error,omitempty"`
	Result *engine.TableData `json:"result,omitempty"`
}

func validateOutputFormat(output string) error {
	switch output {
	case "table", "csv", "json":
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use 'table', 'csv' or 'json'", output)
}

// ============================================================================
// RENDERING
// ============================================================================

func (a *app) printOutcome(cmd *cobra.Command, out agent.Outcome) error {
	w := cmd.OutOrStdout()
	switch a.output {
	case "json":
		o := outcomeOutput{Outcome: out}
		if out.Err != nil {
			o.Error = out.Err.Error()
		}
		if out.Table != nil {
			o.Result = engine.BuildTable(out.Table, engine.WithMaxRows(a.maxRows))
		}
		if err := printJSON(w, o); err != nil {
			return err
		}
	case "csv":
		if out.OK() {
			if err := writeCSV(w, out.Table); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), out.Message)
	default:
		if out.Expression != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "expression: %s\n", out.Expression)
		}
		if out.OK() {
			if err := writeTable(w, out.Table, a.maxRows); err != nil {
				return err
			}
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), out.Message)
	}
	return exitError(out)
}

func (a *app) printResolutions(w io.Writer, rows []resolveRow) error {
	switch a.output {
	case "json":
		return printJSON(w, rows)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"header", "column", "method", "score"})
		for _, r := range rows {
			_ = cw.Write([]string{r.Header, r.Column, r.Method, engine.FormatNumber(r.Score)})
		}
		cw.Flush()
		return cw.Error()
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "HEADER\tCOLUMN\tMETHOD\tSCORE")
	for _, r := range rows {
		col := r.Column
		if col == "" {
			col = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Header, col, r.Method, engine.FormatNumber(r.Score))
	}
	return tw.Flush()
}

// writeTable prints an aligned table followed by a truncation note.
func writeTable(w io.Writer, t *engine.Table, maxRows int) error {
	data := engine.BuildTable(t, engine.WithMaxRows(maxRows))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(data.Columns))
	for i, c := range data.Columns {
		headers[i] = c.Label
	}
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range data.Rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if data.Truncated {
		_, _ = fmt.Fprintf(w, "... %d of %d rows shown\n", len(data.Rows), data.TotalRows)
	}
	return nil
}

// writeCSV writes every row.
func writeCSV(w io.Writer, t *engine.Table) error {
	data := engine.BuildTable(t, engine.WithMaxRows(0))
	cw := csv.NewWriter(w)
	headers := make([]string, len(data.Columns))
	for i, c := range data.Columns {
		headers[i] = c.Label
	}
	_ = cw.Write(headers)
	for _, row := range data.Rows {
		_ = cw.Write(row)
	}
	cw.Flush()
	return cw.Error()
}

// printColumns describes each column: inferred type, nulls and distinct
// values.
func printColumns(w io.Writer, t *engine.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLS\tUNIQUE")
	for _, name := range t.Columns() {
		c, _ := t.Column(name)
		nulls := 0
		seen := make(map[string]struct{})
		for _, v := range c.Values {
			if v.IsNull() {
				nulls++
				continue
			}
			seen[v.Key()] = struct{}{}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", name, c.Kind, nulls, len(seen))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
