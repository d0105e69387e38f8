package crimesql

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the loader. Match them with errors.Is.
var (
	// ErrSourceNotFound indicates the source file does not exist
	ErrSourceNotFound = errors.New("crimesql: source not found")

	// ErrSchemaMismatch indicates a header, selection or row that does not fit the expected columns
	ErrSchemaMismatch = errors.New("crimesql: schema mismatch")

	// ErrIOFailure indicates a read fault in the source or a write fault in the store
	ErrIOFailure = errors.New("crimesql: io failure")

	// ErrRelationNotEmpty indicates the target relation already holds rows
	ErrRelationNotEmpty = errors.New("crimesql: relation is not empty")

	// ErrNotRestartable indicates the reader cannot be rewound
	ErrNotRestartable = errors.New("crimesql: reader is not restartable")

	// ErrUnsupported indicates an unsupported file type or store capability
	ErrUnsupported = errors.New("crimesql: unsupported")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	Relation  string
	Batch     int
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
		Batch:     -1,
	}
}

// WithRelation adds relation context to the error
func (ec *ErrorContext) WithRelation(relation string) *ErrorContext {
	ec.Relation = relation
	return ec
}

// WithBatch adds the batch index to the error
func (ec *ErrorContext) WithBatch(index int) *ErrorContext {
	ec.Batch = index
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, fmt.Sprintf("crimesql: %s failed", ec.Operation))

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}

	if ec.Relation != "" {
		parts = append(parts, "relation: "+ec.Relation)
	}

	if ec.Batch >= 0 {
		parts = append(parts, fmt.Sprintf("batch: %d", ec.Batch))
	}

	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return fmt.Errorf("%s", context)
}

// ioFailure wraps err as ErrIOFailure unless it already carries one of the loader sentinels.
func ioFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIOFailure) || errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrSourceNotFound) || errors.Is(err, ErrUnsupported) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIOFailure, err)
}
