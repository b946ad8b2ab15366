package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("already exists")
)

const pqUniqueViolation = "23505"

// DuplicateError names the field whose uniqueness was violated
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

// Unwrap lets errors.Is match ErrDuplicate
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// mapError converts driver errors into the package sentinels. constraintFields
// maps unique index names to the user-facing field they guard.
func mapError(err error, constraintFields map[string]string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		if field, ok := constraintFields[pqErr.Constraint]; ok {
			return &DuplicateError{Field: field}
		}
		return ErrDuplicate
	}
	return err
}
