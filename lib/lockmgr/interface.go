package lockmgr

import (
	"context"
	"time"
)

// ILockManager defines the lock engine. All state lives in the store record,
// so any number of managers may share one store.
type ILockManager interface {
	// Acquire tries to take the lock once. It returns nil if the handle now holds
	// the lock (or already held it) and ErrConflict if another owner holds it.
	Acquire(ctx context.Context, h *Handle) error

	// WaitAndAcquire calls Acquire until it succeeds, sleeping the retry interval
	// after every ErrConflict. It returns ctx.Err() if ctx ends first.
	WaitAndAcquire(ctx context.Context, h *Handle) error

	// Renew sets the expiry of the existing record to now + ttl and reduces the
	// handle's lifetime accordingly. The stored token is not checked: callers must
	// only renew locks they hold. ErrPrecondition is returned if no record exists.
	Renew(ctx context.Context, h *Handle, ttl time.Duration) error

	// Exists reports whether the record exists, is not expired and carries the
	// handle's token.
	Exists(ctx context.Context, h *Handle) (bool, error)

	// Release deletes the record without checking the token.
	// A missing record is not an error.
	Release(ctx context.Context, h *Handle) error
}
