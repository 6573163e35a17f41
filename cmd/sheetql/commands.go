package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/sheetql/agent"
	"github.com/spektr-org/sheetql/translator"
)

func newSheetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <file>",
		Short: "List the sheets of a workbook and the columns of the selected one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(args[0])
			if err != nil {
				return err
			}
			info := sheetInfo{
				Sheets:  s.SheetNames(),
				Current: s.Sheet(),
				Rows:    s.Table().NumRows(),
				Columns: s.Columns(),
			}
			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), info)
			}
			w := cmd.OutOrStdout()
			for _, name := range info.Sheets {
				marker := " "
				if name == info.Current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(w, "%s %s\n", marker, name)
			}
			_, _ = fmt.Fprintf(w, "\n%s: %d rows\n", info.Current, info.Rows)
			return printColumns(w, s.Table())
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <file> <category> <request...>",
		Short: "Translate a request into an expression and run it",
		Long: "Translate a natural-language request into an expression and run it against the sheet.\n" +
			"Categories: " + strings.Join(categoryNames(), ", ") + ".",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := translator.ParseCategory(args[1])
			if err != nil {
				return err
			}
			s, err := a.session(args[0])
			if err != nil {
				return err
			}
			if a.client == nil {
				return errNoAPIKey
			}
			out, err := s.Run(cmd.Context(), category, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			return a.printOutcome(cmd, out)
		},
	}
}

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <file> <expression>",
		Short: "Run an expression directly against the sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(args[0])
			if err != nil {
				return err
			}
			out, err := s.Execute(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.printOutcome(cmd, out)
		},
	}
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <file> <header...>",
		Short: "Map free-form column names onto the sheet's columns",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(args[0])
			if err != nil {
				return err
			}
			rows := make([]resolveRow, 0, len(args)-1)
			for _, h := range args[1:] {
				res := s.Resolve(cmd.Context(), h)
				rows = append(rows, resolveRow{
					Header: res.Header,
					Column: res.Column,
					Method: string(res.Method),
					Score:  res.Score,
				})
			}
			return a.printResolutions(cmd.OutOrStdout(), rows)
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version": version,
					"commit":  commit,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sheetql version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}

func categoryNames() []string {
	cats := translator.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}

// exitError turns a failed outcome into a non-zero exit after its output
// has been printed.
func exitError(out agent.Outcome) error {
	if out.OK() {
		return nil
	}
	if out.Err != nil {
		return fmt.Errorf("%s: %w", out.State, out.Err)
	}
	return fmt.Errorf("%s", out.State)
}
