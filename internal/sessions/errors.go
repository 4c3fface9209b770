package sessions

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlan means the ceiling resolved for a user is below one session.
	ErrInvalidPlan = errors.New("subscription plan allows no sessions")
	ErrUnknownUser = errors.New("user not found")
)

// StorageError is a failed read, write or transaction against the session store.
// Callers must treat it as a hard failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AdmissionError means no session was created and no eviction was applied.
type AdmissionError struct {
	UserID int64
	Err    error
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("admit session for user %d: %v", e.UserID, e.Err)
}

func (e *AdmissionError) Unwrap() error { return e.Err }

// ValidationRejected is the error form of a non-active Result.
type ValidationRejected struct {
	Status Status
}

func (e *ValidationRejected) Error() string {
	return fmt.Sprintf("session rejected: %s", e.Status.Reason())
}

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func storageErrUnlessDomain(op string, err error) error {
	if errors.Is(err, ErrInvalidPlan) || errors.Is(err, ErrUnknownUser) {
		return err
	}
	return storageErr(op, err)
}
