package runstore

import (
	"errors"
	"fmt"
)

// ErrAccessViolation indicates an attempt to mutate an immutable store
// binding (the database location is fixed once a Connector is opened).
var ErrAccessViolation = errors.New("access violation")

// ErrRunNotFound indicates a lookup for a run id with no matching row.
var ErrRunNotFound = errors.New("run not found")

// QueryError wraps a failed SQL statement: malformed SQL, a constraint
// violation, or a driver failure. It is never swallowed; masking a write
// failure would corrupt the registry's uniqueness invariant.
type QueryError struct {
	Stmt string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v (statement: %s)", e.Err, e.Stmt)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
