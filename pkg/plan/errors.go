package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTypeDescriptor is returned when a column's declared type is
	// empty or cannot be read as a MySQL column type.
	ErrMalformedTypeDescriptor = errors.New("malformed type descriptor")
	// ErrDuplicateColumnName is returned when a table reports the same column twice.
	ErrDuplicateColumnName = errors.New("duplicate column name")
	// ErrMissingTarget is returned when the target charset or collation is not set.
	ErrMissingTarget = errors.New("target character set and collation are required")
)

// ColumnError identifies the table and column that stopped plan generation.
type ColumnError struct {
	Table  string
	Column string
	Type   string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("table %q column %q (type %q): %s", e.Table, e.Column, e.Type, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}
