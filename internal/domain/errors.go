package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation marks a contract violation by the caller. It is
	// never retried.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrNotFound is returned when an addressed link does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks a failure of the underlying persistence layer.
	ErrStorage = errors.New("storage error")
)

// StorageError wraps a driver error. Transient is set for conflicts that
// may succeed when retried (serialization failures, busy databases).
type StorageError struct {
	Op        string
	Err       error
	Transient bool
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// IsTransient reports whether err is a storage error worth retrying.
func IsTransient(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}
