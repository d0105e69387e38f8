package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/crimesql"
	"github.com/nao1215/crimesql/chart"
	"github.com/nao1215/crimesql/internal/config"
	"github.com/nao1215/crimesql/report"
	"github.com/spf13/cobra"
)

type reportFlags struct {
	db         string
	relation   string
	out        string
	format     string
	compress   string
	workbook   string
	geojson    string
	choropleth string
}

func newReportCommand(a *app) *cobra.Command {
	f := &reportFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the aggregation reports over a loaded relation",
		Long: `Report runs every aggregation report over the relation and writes one file
per report to --out. Reports whose columns the relation lacks are skipped with
a warning.

--workbook additionally renders the standard charts into one XLSX workbook.
--geojson reads a community area boundary file and writes a choropleth of the
community area counts to --choropleth.`,
		Example: `  crimesql report
  crimesql report --format parquet --compress zstd --out ./reports
  crimesql report --workbook charts.xlsx --geojson community_areas.geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runReport(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.db, "db", "", "SQLite database file")
	flags.StringVar(&f.relation, "relation", "", "Relation to report on")
	flags.StringVarP(&f.out, "out", "o", "", "Output directory")
	flags.StringVar(&f.format, "format", "", "Output format: csv, tsv, ltsv, parquet, xlsx")
	flags.StringVar(&f.compress, "compress", "", "Output compression: none, gz, xz, zstd")
	flags.StringVar(&f.workbook, "workbook", "", "Write charts to this XLSX workbook")
	flags.StringVar(&f.geojson, "geojson", "", "Community area GeoJSON to color by crime count")
	flags.StringVar(&f.choropleth, "choropleth", "", "Output GeoJSON path (default <out>/choropleth.geojson)")

	return cmd
}

// applyReportFlags overrides configuration values with the flags that were set.
func applyReportFlags(cmd *cobra.Command, cfg *config.Config, f *reportFlags) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = f.db
	}
	if flags.Changed("relation") {
		cfg.Database.Relation = f.relation
	}
	if flags.Changed("out") {
		cfg.Report.OutDir = f.out
	}
	if flags.Changed("format") {
		cfg.Report.Format = f.format
	}
	if flags.Changed("compress") {
		cfg.Report.Compression = f.compress
	}
	if flags.Changed("workbook") {
		cfg.Report.Workbook = f.workbook
	}
	if flags.Changed("geojson") {
		cfg.Report.GeoJSON = f.geojson
	}
	if flags.Changed("choropleth") {
		cfg.Report.Choropleth = f.choropleth
	}
	if cfg.Report.GeoJSON != "" && cfg.Report.Choropleth == "" {
		cfg.Report.Choropleth = filepath.Join(cfg.Report.OutDir, "choropleth.geojson")
	}
}

func (a *app) runReport(cmd *cobra.Command, f *reportFlags) error {
	applyReportFlags(cmd, a.cfg, f)
	options, err := a.cfg.ExportOptions()
	if err != nil {
		return err
	}

	if _, err := os.Stat(a.cfg.Database.Path); err != nil {
		return fmt.Errorf("%w: %s", crimesql.ErrSourceNotFound, a.cfg.Database.Path)
	}
	store, err := crimesql.OpenSQLite(a.cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	tables, err := report.All(cmd.Context(), store.DB(), a.cfg.Database.Relation)
	if errors.Is(err, report.ErrMissingColumn) {
		for _, skipped := range unwrapJoined(err) {
			a.logger.Warn("report skipped", "error", skipped)
		}
	} else if err != nil {
		return err
	}

	written, err := report.ExportAll(tables, a.cfg.Report.OutDir, options)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, path := range written {
		a.logger.Debug("report written", "path", path)
	}
	fmt.Fprintf(out, "wrote %d reports to %s\n", len(written), a.cfg.Report.OutDir)

	if path := a.cfg.Report.Workbook; path != "" {
		charts, err := chart.Default(tables)
		if err != nil {
			return err
		}
		if err := chart.WriteWorkbook(path, charts); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %d charts to %s\n", len(charts), path)
	}

	if a.cfg.Report.GeoJSON != "" {
		if err := a.writeChoropleth(tables); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote choropleth to %s\n", a.cfg.Report.Choropleth)
	}
	return nil
}

// writeChoropleth colors the configured boundary file by community area count.
func (a *app) writeChoropleth(tables []*report.Table) error {
	var counts *report.Table
	for _, t := range tables {
		if t.Name == report.NameCrimesByCommunityArea {
			counts = t
			break
		}
	}
	if counts == nil {
		return fmt.Errorf("choropleth: %w: %s was not produced", report.ErrMissingColumn, report.NameCrimesByCommunityArea)
	}

	geojson, err := os.ReadFile(a.cfg.Report.GeoJSON)
	if err != nil {
		return fmt.Errorf("choropleth: %w", err)
	}
	out, err := chart.Choropleth(counts, geojson, a.cfg.Report.KeyProperty, a.cfg.Report.NameProperty)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(a.cfg.Report.Choropleth); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(a.cfg.Report.Choropleth, out, 0o600)
}

// unwrapJoined flattens an errors.Join result.
func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
