package engine

import (
	"errors"

	"github.com/lazypower/discover/internal/auth"
)

var (
	// ErrUnauthenticated means the caller presented no identity.
	ErrUnauthenticated = auth.ErrUnauthenticated
	// ErrValidation means the input must be corrected; never retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the referenced item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStorage means the store failed or timed out; the operation may be retried.
	ErrStorage = errors.New("storage failure")
)

// storageError classifies a store failure as ErrStorage while keeping the
// underlying cause reachable through errors.Is / errors.As.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return e.op + ": " + e.err.Error() }

func (e *storageError) Unwrap() []error { return []error{ErrStorage, e.err} }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storageError{op: op, err: err}
}
