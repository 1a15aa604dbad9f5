package core

import (
	"errors"
	"fmt"
)

// Row-level errors. These are recovered: the row is diverted and the batch
// continues.
var (
	ErrInvalidDateFormat      = errors.New("invalid date of birth format")
	ErrInvalidTimestampFormat = errors.New("invalid timestamp format")
	ErrDuplicateIdentity      = errors.New("duplicate identity")
	ErrEmptyRequiredField     = errors.New("empty required field")
)

// Store and operation errors.
var (
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInputNotFound        = errors.New("input file not found")
	ErrFileTooLarge         = errors.New("file too large")
	ErrStoreNotCreated      = errors.New("store not created")
)

// Diagnostic reasons written to the invalid-rows file.
const (
	ReasonInvalidDOB       = "date of birth does not match expected format"
	ReasonInvalidTimestamp = "timestamp does not match expected format"
)

// RowError attaches identity and line context to a store failure.
type RowError struct {
	Line     int
	Identity Identity
	Op       string
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s %s: %v", e.Line, e.Op, e.Identity, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
