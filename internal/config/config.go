// Package config loads crimesql settings from a YAML file, an optional .env
// file and CRIMESQL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nao1215/crimesql/domain/model"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when a setting fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// ConfigFileName is the config file looked up when no path is given.
const ConfigFileName = "crimesql.yaml"

// Defaults.
const (
	DefaultDatabase     = "crimes.db"
	DefaultReportDir    = "reports"
	DefaultKeyProperty  = "area_numbe"
	DefaultNameProperty = "community"
)

// Environment variables overriding file settings.
const (
	EnvDatabase          = "CRIMESQL_DB"
	EnvRelation          = "CRIMESQL_RELATION"
	EnvChunkSize         = "CRIMESQL_CHUNK_SIZE"
	EnvColumns           = "CRIMESQL_COLUMNS"
	EnvReportDir         = "CRIMESQL_REPORT_DIR"
	EnvReportFormat      = "CRIMESQL_REPORT_FORMAT"
	EnvReportCompression = "CRIMESQL_REPORT_COMPRESS"
)

// DatabaseConfig locates the store.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	Relation string `yaml:"relation"`
}

// LoadConfig holds loader settings.
type LoadConfig struct {
	ChunkSize       int      `yaml:"chunk_size"`
	Columns         []string `yaml:"columns,omitempty"`
	IncidentColumns bool     `yaml:"incident_columns"`
	Atomic          bool     `yaml:"atomic"`
	FailIfExists    bool     `yaml:"fail_if_exists"`
	NoInfer         bool     `yaml:"no_infer"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	OutDir       string `yaml:"out_dir"`
	Format       string `yaml:"format"`
	Compression  string `yaml:"compression"`
	Workbook     string `yaml:"workbook,omitempty"`
	GeoJSON      string `yaml:"geojson,omitempty"`
	Choropleth   string `yaml:"choropleth,omitempty"`
	KeyProperty  string `yaml:"key_property,omitempty"`
	NameProperty string `yaml:"name_property,omitempty"`
}

// Config is the complete crimesql configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Load     LoadConfig     `yaml:"load"`
	Report   ReportConfig   `yaml:"report"`
}

// Load reads the YAML file at path, or ConfigFileName in the working
// directory when path is empty. The result is not finalized.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigFileName
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none
// are given, without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) loadDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabase
	}
	if c.Database.Relation == "" {
		c.Database.Relation = model.DefaultRelation
	}
	if c.Load.ChunkSize == 0 {
		c.Load.ChunkSize = model.DefaultChunkSize
	}
	if c.Report.OutDir == "" {
		c.Report.OutDir = DefaultReportDir
	}
	if c.Report.Format == "" {
		c.Report.Format = model.OutputFormatCSV.String()
	}
	if c.Report.Compression == "" {
		c.Report.Compression = model.CompressionNone.String()
	}
	if c.Report.KeyProperty == "" {
		c.Report.KeyProperty = DefaultKeyProperty
	}
	if c.Report.NameProperty == "" {
		c.Report.NameProperty = DefaultNameProperty
	}
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvRelation); v != "" {
		c.Database.Relation = v
	}
	if v := os.Getenv(EnvChunkSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvChunkSize, v, err)
		}
		c.Load.ChunkSize = n
	}
	if v := os.Getenv(EnvColumns); v != "" {
		c.Load.Columns = SplitList(v)
	}
	if v := os.Getenv(EnvReportDir); v != "" {
		c.Report.OutDir = v
	}
	if v := os.Getenv(EnvReportFormat); v != "" {
		c.Report.Format = v
	}
	if v := os.Getenv(EnvReportCompression); v != "" {
		c.Report.Compression = v
	}
	return nil
}

func (c *Config) validate() error {
	if c.Load.ChunkSize < model.MinChunkSize {
		return fmt.Errorf("%w: chunk size %d is below %d", ErrInvalidConfig, c.Load.ChunkSize, model.MinChunkSize)
	}
	if _, err := c.ExportOptions(); err != nil {
		return err
	}
	return nil
}

// ExportOptions converts the report format and compression settings.
func (c *Config) ExportOptions() (model.ExportOptions, error) {
	format, ok := model.ParseOutputFormat(c.Report.Format)
	if !ok {
		return model.ExportOptions{}, fmt.Errorf("%w: report format %q", ErrInvalidConfig, c.Report.Format)
	}
	compression, ok := model.ParseCompressionType(c.Report.Compression)
	if !ok {
		return model.ExportOptions{}, fmt.Errorf("%w: report compression %q", ErrInvalidConfig, c.Report.Compression)
	}
	return model.NewExportOptions().WithFormat(format).WithCompression(compression), nil
}

// SplitList splits a comma separated list and drops blank entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
