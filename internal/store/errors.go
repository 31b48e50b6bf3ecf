package store

import "fmt"

// PersistenceError reports a failed write. The transaction it happened in
// has been rolled back, so no row of the batch was committed.
type PersistenceError struct {
	Op    string // validate, begin, exec, commit
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
