// Package model provides the domain model for crimesql: headers, records,
// schemas, batches and the incident column set.
package model

import (
	"fmt"
	"strings"
)

// Chunk size constants (rows)
const (
	// DefaultChunkSize is the default number of rows materialized per batch
	DefaultChunkSize = 50000
	// MinChunkSize is the minimum allowed rows per batch
	MinChunkSize = 1
	// InferenceSampleSize is the number of leading rows column types are inferred from
	InferenceSampleSize = 10000
)

// Header is file header.
type Header []string

// NewHeader create new Header.
func NewHeader(h []string) Header {
	return Header(h)
}

// Equal compare Header.
func (h Header) Equal(h2 Header) bool {
	if len(h) != len(h2) {
		return false
	}
	for i, v := range h {
		if v != h2[i] {
			return false
		}
	}
	return true
}

// Validate checks for duplicate and empty column names.
// Names are compared after trimming whitespace, case-sensitive.
func (h Header) Validate() error {
	seen := make(map[string]bool, len(h))
	for i, col := range h {
		name := strings.TrimSpace(col)
		if name == "" {
			return fmt.Errorf("%w: column %d", ErrEmptyColumnName, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumnName, col)
		}
		seen[name] = true
	}
	return nil
}

// Record is file records.
type Record []string

// NewRecord create new Record.
func NewRecord(r []string) Record {
	return Record(r)
}

// Project returns a new record holding the fields at the given indices.
func (r Record) Project(indices []int) Record {
	out := make(Record, len(indices))
	for i, idx := range indices {
		if idx < len(r) {
			out[i] = r[idx]
		}
	}
	return out
}

// ColumnType represents the SQL column type
type ColumnType int

const (
	// ColumnTypeText represents TEXT column type
	ColumnTypeText ColumnType = iota
	// ColumnTypeInteger represents INTEGER column type
	ColumnTypeInteger
	// ColumnTypeReal represents REAL column type
	ColumnTypeReal
	// ColumnTypeDatetime represents datetime stored as TEXT
	ColumnTypeDatetime
)

const (
	sqlTypeText    = "TEXT"
	sqlTypeInteger = "INTEGER"
	sqlTypeReal    = "REAL"
)

// String returns the SQL column type string
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeText:
		return sqlTypeText
	case ColumnTypeInteger:
		return sqlTypeInteger
	case ColumnTypeReal:
		return sqlTypeReal
	case ColumnTypeDatetime:
		return sqlTypeText // SQLite stores datetime as TEXT
	default:
		return sqlTypeText
	}
}

// ColumnInfo represents column information with name and inferred type
type ColumnInfo struct {
	Name string
	Type ColumnType
}

// Schema is the ordered set of columns a relation or batch conforms to.
type Schema []ColumnInfo

// TextSchema returns a schema with every column typed as TEXT.
func TextSchema(header Header) Schema {
	schema := make(Schema, len(header))
	for i, name := range header {
		schema[i] = ColumnInfo{Name: name, Type: ColumnTypeText}
	}
	return schema
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, col := range s {
		names[i] = col.Name
	}
	return names
}

// Index returns the position of the named column or -1.
// SQLite identifiers are case-insensitive, so the lookup is too.
func (s Schema) Index(name string) int {
	for i, col := range s {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// ChunkSize represents a batch size with validation
type ChunkSize int

// NewChunkSize creates a new ChunkSize, falling back to the default below the minimum.
func NewChunkSize(size int) ChunkSize {
	if size < MinChunkSize {
		return ChunkSize(DefaultChunkSize)
	}
	return ChunkSize(size)
}

// Int returns the int value of ChunkSize
func (cs ChunkSize) Int() int {
	return int(cs)
}
