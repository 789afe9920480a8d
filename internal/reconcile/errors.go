package reconcile

import (
	"errors"
	"fmt"
)

// WriteError reports a failed DDL application, identifying the
// offending table and trigger. Processing of subsequent tables halts;
// tables reconciled before the failure remain correctly migrated.
type WriteError struct {
	Table   string
	Trigger string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("apply trigger %q on table %q: %v", e.Trigger, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsWriteError reports whether err is a WriteError.
// Uses errors.As to handle wrapped errors.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}
