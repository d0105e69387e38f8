package cli

import (
	"fmt"

	"github.com/nao1215/crimesql"
	"github.com/nao1215/crimesql/domain/model"
	"github.com/nao1215/crimesql/internal/config"
	"github.com/spf13/cobra"
)

type loadFlags struct {
	db              string
	relation        string
	chunkSize       int
	columns         string
	incidentColumns bool
	atomic          bool
	failIfExists    bool
	noInfer         bool
}

func newLoadCommand(a *app) *cobra.Command {
	f := &loadFlags{}

	cmd := &cobra.Command{
		Use:   "load <source>",
		Short: "Load an incident export into the SQLite store",
		Long: `Load reads the source file in batches of --chunk-size rows and appends every
batch, in file order, to the relation. The relation is created from the first
batch when it does not exist.

By default each batch is committed on its own, so a failure keeps the batches
already loaded; --atomic loads the whole file in one transaction. Loading the
same file twice appends its rows twice unless --fail-if-exists is set.`,
		Example: `  crimesql load Crimes_-_2001_to_Present.csv
  crimesql load crimes.csv.gz --incident-columns --atomic
  crimesql load crimes.parquet --columns "Case Number,Primary Type,Year" --db /data/crimes.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLoad(cmd, f, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.db, "db", "", "SQLite database file")
	flags.StringVar(&f.relation, "relation", "", "Target relation")
	flags.IntVar(&f.chunkSize, "chunk-size", 0, "Rows per batch")
	flags.StringVar(&f.columns, "columns", "", "Comma separated columns to keep")
	flags.BoolVar(&f.incidentColumns, "incident-columns", false, "Keep only the standard incident columns")
	flags.BoolVar(&f.atomic, "atomic", false, "Load the whole file in one transaction")
	flags.BoolVar(&f.failIfExists, "fail-if-exists", false, "Refuse to load into a relation that holds rows")
	flags.BoolVar(&f.noInfer, "no-infer", false, "Store every column as TEXT")
	cmd.MarkFlagsMutuallyExclusive("columns", "incident-columns")

	return cmd
}

// applyLoadFlags overrides configuration values with the flags that were set.
func applyLoadFlags(cmd *cobra.Command, cfg *config.Config, f *loadFlags) error {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = f.db
	}
	if flags.Changed("relation") {
		cfg.Database.Relation = f.relation
	}
	if flags.Changed("chunk-size") {
		cfg.Load.ChunkSize = f.chunkSize
	}
	if flags.Changed("columns") {
		cfg.Load.Columns = config.SplitList(f.columns)
		cfg.Load.IncidentColumns = false
	}
	if flags.Changed("incident-columns") {
		cfg.Load.IncidentColumns = f.incidentColumns
	}
	if flags.Changed("atomic") {
		cfg.Load.Atomic = f.atomic
	}
	if flags.Changed("fail-if-exists") {
		cfg.Load.FailIfExists = f.failIfExists
	}
	if flags.Changed("no-infer") {
		cfg.Load.NoInfer = f.noInfer
	}
	if cfg.Load.ChunkSize < model.MinChunkSize {
		return fmt.Errorf("%w: chunk size %d is below %d", config.ErrInvalidConfig, cfg.Load.ChunkSize, model.MinChunkSize)
	}
	return nil
}

// loaderOptions translates the load settings.
func loaderOptions(cfg *config.Config) []crimesql.LoaderOption {
	opts := []crimesql.LoaderOption{
		crimesql.WithRelation(cfg.Database.Relation),
		crimesql.WithLoadChunkSize(cfg.Load.ChunkSize),
		crimesql.WithInference(!cfg.Load.NoInfer),
	}
	switch {
	case cfg.Load.IncidentColumns:
		opts = append(opts, crimesql.WithIncidentColumns())
	case len(cfg.Load.Columns) > 0:
		opts = append(opts, crimesql.WithSelectColumns(cfg.Load.Columns...))
	}
	if cfg.Load.Atomic {
		opts = append(opts, crimesql.WithAtomicity(crimesql.AtomicityAll))
	}
	if cfg.Load.FailIfExists {
		opts = append(opts, crimesql.WithExistingPolicy(crimesql.ExistingFail))
	}
	return opts
}

func (a *app) runLoad(cmd *cobra.Command, f *loadFlags, source string) error {
	if err := applyLoadFlags(cmd, a.cfg, f); err != nil {
		return err
	}

	store, err := crimesql.OpenSQLite(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := append(loaderOptions(a.cfg), crimesql.WithLogger(a.logger))
	result, err := crimesql.NewLoader(store, opts...).LoadFile(cmd.Context(), source)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows in %d batches into %s (%s)\n",
		result.Rows, result.Batches, result.Relation, a.cfg.Database.Path)
	return nil
}
