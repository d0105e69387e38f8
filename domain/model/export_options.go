package model

import "strings"

// OutputFormat represents the output file format of an exported table
type OutputFormat int

const (
	// OutputFormatCSV represents CSV output format
	OutputFormatCSV OutputFormat = iota
	// OutputFormatTSV represents TSV output format
	OutputFormatTSV
	// OutputFormatLTSV represents LTSV output format
	OutputFormatLTSV
	// OutputFormatParquet represents Parquet output format
	OutputFormatParquet
	// OutputFormatXLSX represents Excel XLSX output format
	OutputFormatXLSX
)

// String returns the string representation of OutputFormat
func (f OutputFormat) String() string {
	switch f {
	case OutputFormatTSV:
		return "tsv"
	case OutputFormatLTSV:
		return "ltsv"
	case OutputFormatParquet:
		return "parquet"
	case OutputFormatXLSX:
		return "xlsx"
	default:
		return "csv"
	}
}

// Extension returns the file extension for the format
func (f OutputFormat) Extension() string {
	switch f {
	case OutputFormatTSV:
		return ExtTSV
	case OutputFormatLTSV:
		return ExtLTSV
	case OutputFormatParquet:
		return ExtParquet
	case OutputFormatXLSX:
		return ExtXLSX
	default:
		return ExtCSV
	}
}

// ParseOutputFormat maps a user supplied name to an OutputFormat.
func ParseOutputFormat(name string) (OutputFormat, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "csv":
		return OutputFormatCSV, true
	case "tsv":
		return OutputFormatTSV, true
	case "ltsv":
		return OutputFormatLTSV, true
	case "parquet":
		return OutputFormatParquet, true
	case "xlsx":
		return OutputFormatXLSX, true
	default:
		return OutputFormatCSV, false
	}
}

// ExportOptions configures how report tables are written to files.
//
// Example:
//
//	options := NewExportOptions().
//		WithFormat(OutputFormatTSV).
//		WithCompression(CompressionGZ)
type ExportOptions struct {
	// Format specifies the output file format
	Format OutputFormat
	// Compression specifies the compression type
	Compression CompressionType
}

// NewExportOptions creates default export options (CSV, no compression).
func NewExportOptions() ExportOptions {
	return ExportOptions{
		Format:      OutputFormatCSV,
		Compression: CompressionNone,
	}
}

// WithFormat sets the output file format.
func (o ExportOptions) WithFormat(format OutputFormat) ExportOptions {
	o.Format = format
	return o
}

// WithCompression adds compression to output files.
func (o ExportOptions) WithCompression(compression CompressionType) ExportOptions {
	o.Compression = compression
	return o
}

// FileExtension returns the complete file extension including compression
func (o ExportOptions) FileExtension() string {
	return o.Format.Extension() + o.Compression.Extension()
}
