package model

import (
	"path/filepath"
	"strings"
)

// FileType represents supported source file types
type FileType int

const (
	// FileTypeCSV represents CSV file type
	FileTypeCSV FileType = iota
	// FileTypeTSV represents TSV file type
	FileTypeTSV
	// FileTypeParquet represents Parquet file type
	FileTypeParquet
	// FileTypeXLSX represents Excel XLSX file type
	FileTypeXLSX
	// FileTypeUnsupported represents unsupported file type
	FileTypeUnsupported
)

// File extensions
const (
	// ExtCSV is the CSV file extension
	ExtCSV = ".csv"
	// ExtTSV is the TSV file extension
	ExtTSV = ".tsv"
	// ExtLTSV is the LTSV file extension
	ExtLTSV = ".ltsv"
	// ExtParquet is the Parquet file extension
	ExtParquet = ".parquet"
	// ExtXLSX is the Excel XLSX file extension
	ExtXLSX = ".xlsx"
	// ExtGZ is the gzip compression extension
	ExtGZ = ".gz"
	// ExtBZ2 is the bzip2 compression extension
	ExtBZ2 = ".bz2"
	// ExtXZ is the xz compression extension
	ExtXZ = ".xz"
	// ExtZSTD is the zstd compression extension
	ExtZSTD = ".zst"
)

// String returns the string representation of FileType
func (ft FileType) String() string {
	switch ft {
	case FileTypeCSV:
		return "csv"
	case FileTypeTSV:
		return "tsv"
	case FileTypeParquet:
		return "parquet"
	case FileTypeXLSX:
		return "xlsx"
	default:
		return "unsupported"
	}
}

// Delimiter returns the field delimiter for delimited file types.
func (ft FileType) Delimiter() rune {
	if ft == FileTypeTSV {
		return '\t'
	}
	return ','
}

// IsDelimited reports whether the type is read with encoding/csv.
func (ft FileType) IsDelimited() bool {
	return ft == FileTypeCSV || ft == FileTypeTSV
}

// CompressionType represents the compression type
type CompressionType int

const (
	// CompressionNone represents no compression
	CompressionNone CompressionType = iota
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD
)

// String returns the string representation of CompressionType
func (c CompressionType) String() string {
	switch c {
	case CompressionGZ:
		return "gz"
	case CompressionBZ2:
		return "bz2"
	case CompressionXZ:
		return "xz"
	case CompressionZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the file extension for the compression type
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGZ:
		return ExtGZ
	case CompressionBZ2:
		return ExtBZ2
	case CompressionXZ:
		return ExtXZ
	case CompressionZSTD:
		return ExtZSTD
	default:
		return ""
	}
}

// ParseCompressionType maps a user supplied name to a CompressionType.
func ParseCompressionType(name string) (CompressionType, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "none":
		return CompressionNone, true
	case "gz", "gzip":
		return CompressionGZ, true
	case "bz2", "bzip2":
		return CompressionBZ2, true
	case "xz":
		return CompressionXZ, true
	case "zst", "zstd":
		return CompressionZSTD, true
	default:
		return CompressionNone, false
	}
}

// SourceFile is a source path with its detected format and compression.
type SourceFile struct {
	path        string
	fileType    FileType
	compression CompressionType
}

// NewSourceFile creates a new SourceFile
func NewSourceFile(path string) *SourceFile {
	fileType, compression := DetectFileType(path)
	return &SourceFile{
		path:        path,
		fileType:    fileType,
		compression: compression,
	}
}

// Path return file path
func (f *SourceFile) Path() string {
	return f.path
}

// Type return file type
func (f *SourceFile) Type() FileType {
	return f.fileType
}

// Compression return the compression wrapping the file
func (f *SourceFile) Compression() CompressionType {
	return f.compression
}

// IsCompressed checks if file is compressed
func (f *SourceFile) IsCompressed() bool {
	return f.compression != CompressionNone
}

// IsSupported checks if the file type can be loaded
func (f *SourceFile) IsSupported() bool {
	return f.fileType != FileTypeUnsupported
}

// DetectFileType detects the base file type and compression from a path suffix.
func DetectFileType(path string) (FileType, CompressionType) {
	lower := strings.ToLower(path)
	compression := CompressionNone
	for _, c := range []CompressionType{CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD} {
		if strings.HasSuffix(lower, c.Extension()) {
			lower = strings.TrimSuffix(lower, c.Extension())
			compression = c
			break
		}
	}

	switch filepath.Ext(lower) {
	case ExtCSV:
		return FileTypeCSV, compression
	case ExtTSV:
		return FileTypeTSV, compression
	case ExtParquet:
		return FileTypeParquet, compression
	case ExtXLSX:
		return FileTypeXLSX, compression
	default:
		return FileTypeUnsupported, compression
	}
}
