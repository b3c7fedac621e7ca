package lockmgr

import (
	"context"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lockmgr")

// Lock binds a handle to a lock manager.
type Lock struct {
	mgr ILockManager
	h   *Handle
}

// NewLock creates a lock for the handle.
func NewLock(mgr ILockManager, h *Handle) *Lock {
	return &Lock{mgr: mgr, h: h}
}

func (l *Lock) Handle() *Handle { return l.h }

// Acquire takes the lock, waiting for it if blocking is set. If the handle has
// a ttl, the expiry is refreshed afterwards, so acquiring a held lock again
// extends it.
func (l *Lock) Acquire(ctx context.Context, blocking bool) error {
	var err error
	if blocking {
		err = l.mgr.WaitAndAcquire(ctx, l.h)
	} else {
		err = l.mgr.Acquire(ctx, l.h)
	}
	if err != nil {
		return err
	}

	if l.h.TTL() > 0 {
		return l.Refresh(ctx, 0)
	}
	return nil
}

// Refresh pushes the expiry to now + ttl. A zero ttl uses the handle's ttl.
func (l *Lock) Refresh(ctx context.Context, ttl time.Duration) error {
	if ttl == 0 {
		ttl = l.h.TTL()
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: lock %q has no ttl to refresh", ErrInvalidTTL, l.h.Name())
	}

	l.h.ResetLifetime()
	return l.mgr.Renew(ctx, l.h, ttl)
}

// IsAcquired reports whether the handle currently holds the lock.
func (l *Lock) IsAcquired(ctx context.Context) (bool, error) {
	return l.mgr.Exists(ctx, l.h)
}

// Release deletes the lock record and checks that it is gone.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.mgr.Release(ctx, l.h); err != nil {
		return err
	}

	held, err := l.mgr.Exists(ctx, l.h)
	if err != nil {
		return err
	}
	if held {
		return fmt.Errorf("%w: lock %q still held after release", ErrStorage, l.h.Name())
	}
	return nil
}

// KeepAlive refreshes the lock every interval until ctx ends.
// The first refresh error is sent on the returned channel and stops the loop.
// The channel is closed when the loop exits.
func (l *Lock) KeepAlive(ctx context.Context, interval time.Duration) <-chan error {
	errs := make(chan error, 1)

	go func() {
		defer close(errs)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := l.Refresh(ctx, 0)
				if err == nil {
					log.Debugf("refreshed lock %q", l.h.Name())
					continue
				}
				if ctx.Err() != nil {
					return
				}
				log.Warningf("failed to refresh lock %q: %v", l.h.Name(), err)
				errs <- err
				return
			}
		}
	}()

	return errs
}
