// Package cli implements the crimesql command line.
package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/nao1215/crimesql"
	"github.com/nao1215/crimesql/internal/config"
	"github.com/spf13/cobra"
)

// Exit codes returned by the crimesql binary.
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitConfigError    = 10
	ExitSourceNotFound = 11
	ExitSchemaMismatch = 12
	ExitRelationFilled = 13
)

// ExitCodeForError maps an error to the process exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrConfigNotFound):
		return ExitConfigError
	case errors.Is(err, crimesql.ErrSourceNotFound):
		return ExitSourceNotFound
	case errors.Is(err, crimesql.ErrSchemaMismatch):
		return ExitSchemaMismatch
	case errors.Is(err, crimesql.ErrRelationNotEmpty):
		return ExitRelationFilled
	default:
		return ExitGeneralError
	}
}

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	verbose    bool
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCommand builds the crimesql command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "crimesql",
		Short: "Load crime incident exports into SQLite and report on them",
		Long: `crimesql loads a crime incident export (CSV, TSV, Parquet or XLSX, optionally
compressed) into a single local SQLite file in bounded batches, then runs a fixed
set of aggregation reports over it and renders them as tables and charts.

Settings come from crimesql.yaml, a .env file and CRIMESQL_* environment
variables; command line flags override all of them.

Exit Codes:
  0  - Success
  1  - General error
  10 - Invalid configuration
  11 - Source file not found
  12 - Schema mismatch
  13 - Relation already holds rows`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default ./"+config.ConfigFileName+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newLoadCommand(a),
		newReportCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads the configuration and builds the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	switch {
	case errors.Is(err, config.ErrConfigNotFound) && a.configPath == "":
		cfg = &config.Config{}
	case err != nil:
		return err
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), a.verbose)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
