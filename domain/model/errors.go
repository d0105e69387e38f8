package model

import "errors"

var (
	// ErrDuplicateColumnName is returned when a header contains duplicate column names
	ErrDuplicateColumnName = errors.New("duplicate column name")

	// ErrEmptyColumnName is returned when a header contains a blank column name
	ErrEmptyColumnName = errors.New("empty column name")
)
