package catalog

import (
	"errors"
	"fmt"
)

// UnknownTableError reports a requested table that does not exist in
// the catalog. It is a user-input error: callers must abort before any
// DDL is applied.
type UnknownTableError struct {
	Table string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Table)
}

// IsUnknownTable reports whether err is an UnknownTableError.
// Uses errors.As to handle wrapped errors.
func IsUnknownTable(err error) bool {
	var ue *UnknownTableError
	return errors.As(err, &ue)
}

// ReadError wraps a failed catalog introspection query. Introspection
// failures are fatal; no retry will succeed without operator action.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("catalog read: %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
