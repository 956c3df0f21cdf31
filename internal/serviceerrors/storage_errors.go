package serviceerrors

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is wrapped by the local stores when a key is absent.
var ErrRecordNotFound = errors.New("record not found")

// StorageError represents an error in local store operations
type StorageError struct {
	Message string
	Code    int
	err     error
}

func (e *StorageError) Error() string {
	return e.Message
}

func (e *StorageError) Unwrap() error {
	return e.err
}

func NewStorageErrorWithError(err error, format string, a ...any) *StorageError {
	msg := fmt.Sprintf(format, a...)
	e := fmt.Errorf("%s: %w", msg, err)
	return &StorageError{Message: e.Error(), err: err}
}

func NewStorageError(format string, a ...any) *StorageError {
	return &StorageError{Message: fmt.Sprintf(format, a...)}
}

func NewStorageErrorWithCode(code int, format string, a ...any) *StorageError {
	return &StorageError{Message: fmt.Sprintf(format, a...), Code: code}
}

// IsRecordNotFound reports whether the error chain contains ErrRecordNotFound.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// WithRollback runs rollback when err is not nil and joins any rollback failure to the original error.
func WithRollback(err error, rollback func() error) error {
	if err == nil || rollback == nil {
		return err
	}
	if rerr := rollback(); rerr != nil {
		return errors.Join(err, fmt.Errorf("rollback failed: %w", rerr))
	}
	return err
}
