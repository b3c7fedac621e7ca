package lockmgr

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when another valid, non-expired record holds the lock.
	ErrConflict = errors.New("lock is held by another owner")
	// ErrExpired is returned when the handle's lifetime elapsed before the operation completed.
	// The lock must be treated as lost.
	ErrExpired = errors.New("lock expired")
	// ErrStorage wraps every failure of the underlying store other than a missing record.
	ErrStorage = errors.New("lock storage failure")
	// ErrPrecondition is returned by Renew if no record exists.
	ErrPrecondition = errors.New("lock precondition failed")
	// ErrInvalidTTL is returned for a zero or negative ttl where a positive one is required.
	ErrInvalidTTL = errors.New("ttl must be positive")
)

// storageError wraps err so that both errors.Is(err, ErrStorage) and errors.As(err, **store.Error) work.
func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
