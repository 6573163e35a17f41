package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/spektr-org/sheetql/agent"
	"github.com/spektr-org/sheetql/config"
	"github.com/spektr-org/sheetql/eventlog"
	"github.com/spektr-org/sheetql/llm"
	"github.com/spektr-org/sheetql/resolver"
	"github.com/spektr-org/sheetql/sandbox"
	"github.com/spektr-org/sheetql/translator"
)

var (
	version = "dev"
	commit  = "none"
)

// clientFactory builds the language model client. Tests swap in a fake.
type clientFactory func(cfg *config.Config, logger *slog.Logger) llm.Client

func geminiClient(cfg *config.Config, logger *slog.Logger) llm.Client {
	if !cfg.HasAPIKey() {
		return nil
	}
	return llm.NewGemini(cfg.Gemini(), llm.WithLogger(logger))
}

// app is the state shared by every subcommand once flags are resolved.
type app struct {
	newClient clientFactory

	configPath string
	envFiles   []string
	sheet      string
	output     string
	maxRows    int
	verbose    bool

	cfg     *config.Config
	logger  *slog.Logger
	closeFn func()
	client  llm.Client
}

func execute(args []string) int {
	root := newRootCmd(geminiClient)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(newClient clientFactory) *cobra.Command {
	a := &app{newClient: newClient}

	rootCmd := &cobra.Command{
		Use:           "sheetql",
		Short:         "Ask questions about a spreadsheet in plain language",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.closeFn != nil {
				a.closeFn()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, ".env files to load before reading the environment")
	flags.StringVarP(&a.sheet, "sheet", "s", "", "Sheet to query (default: first sheet)")
	flags.StringVarP(&a.output, "output", "o", "table", "Output format (table, csv, json)")
	flags.IntVar(&a.maxRows, "max-rows", 50, "Rows to print in table output (0 = all)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Also print events to stderr")

	rootCmd.AddCommand(newSheetsCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newExecCmd(a))
	rootCmd.AddCommand(newResolveCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))
	return rootCmd
}

func (a *app) init(stderr io.Writer) error {
	if err := validateOutputFormat(a.output); err != nil {
		return err
	}
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	var console io.Writer
	if a.verbose {
		console = stderr
	}
	logger, closeFn, err := eventlog.Open(cfg.Events(console))
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		logger.Warn("ConfigWarning", "detail", w)
	}
	a.cfg, a.logger, a.closeFn = cfg, logger, closeFn
	return nil
}

// session wires the pipeline and focuses the requested sheet of path.
func (a *app) session(path string) (*agent.Session, error) {
	client := a.newClient(a.cfg, a.logger)
	a.client = client

	res := resolver.NewDefault(
		resolver.DefaultSynonyms().With(a.cfg.Synonyms),
		client,
		resolver.WithLogger(a.logger),
	)
	opts := append(a.cfg.SandboxOptions(), sandbox.WithLogger(a.logger))
	if a.cfg.ResolveColumns {
		opts = append(opts, sandbox.WithColumnResolver(agent.ColumnHook(res)))
	}
	ex, err := sandbox.New(opts...)
	if err != nil {
		return nil, err
	}

	s := agent.New(translator.New(client, translator.WithLogger(a.logger)), ex, res, agent.WithLogger(a.logger))
	if err := s.LoadWorkbook(path); err != nil {
		return nil, err
	}
	if a.sheet != "" {
		if err := s.LoadSheet(a.sheet); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var errNoAPIKey = errors.New("GOOGLE_API_KEY (or GEMINI_API_KEY) is required for natural-language queries")
