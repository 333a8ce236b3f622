package mapper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn     = errors.New("missing column")
	ErrColumnLayout      = errors.New("inconsistent column layout")
	ErrRowCountMismatch  = errors.New("row count mismatch")
	ErrMultipleObjectIDs = errors.New("expected exactly one object id")
	ErrInvalidValue      = errors.New("invalid value")
)

// MissingColumnError names a configured column the table lacks.
type MissingColumnError struct {
	Mapper string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: column %q not found", e.Mapper, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// ColumnLayoutError reports geometry columns stored in different layouts.
type ColumnLayoutError struct {
	Mapper  string
	Split   []string
	Unsplit []string
}

func (e *ColumnLayoutError) Error() string {
	return fmt.Sprintf("%s: columns [%s] are split into _x/_y/_z but [%s] are not",
		e.Mapper, strings.Join(e.Split, ", "), strings.Join(e.Unsplit, ", "))
}

func (e *ColumnLayoutError) Unwrap() error { return ErrColumnLayout }

// RowCountMismatchError reports a multipoint row whose geometry columns
// expand to different lengths.
type RowCountMismatchError struct {
	Mapper string
	Row    int
	Counts map[string]int
}

func (e *RowCountMismatchError) Error() string {
	parts := make([]string, 0, len(e.Counts))
	for col, n := range e.Counts {
		parts = append(parts, fmt.Sprintf("%s=%d", col, n))
	}
	return fmt.Sprintf("%s: row %d expands to different point counts (%s)", e.Mapper, e.Row, strings.Join(sortedStrings(parts), ", "))
}

func (e *RowCountMismatchError) Unwrap() error { return ErrRowCountMismatch }

// MultipleObjectIDsError reports split points that do not name exactly
// one object.
type MultipleObjectIDsError struct {
	Mapper string
	IDs    []uint64
}

func (e *MultipleObjectIDsError) Error() string {
	return fmt.Sprintf("%s: expected exactly one object id, found %d %v", e.Mapper, len(e.IDs), e.IDs)
}

func (e *MultipleObjectIDsError) Unwrap() error { return ErrMultipleObjectIDs }

// ValueError reports a cell that cannot be interpreted.
type ValueError struct {
	Mapper string
	Column string
	Row    int
	Err    error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: column %q row %d: %v", e.Mapper, e.Column, e.Row, e.Err)
}

func (e *ValueError) Unwrap() error { return ErrInvalidValue }
