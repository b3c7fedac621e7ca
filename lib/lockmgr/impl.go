package lockmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/dLock/lib/store"
)

type lockMgrImpl struct {
	store store.IStore
	opts  options
}

// NewLockManager creates a lock manager on top of the given store.
func NewLockManager(s store.IStore, opts ...Option) ILockManager {
	o := options{retryInterval: DefaultRetryInterval}
	for _, opt := range opts {
		opt(&o)
	}
	return &lockMgrImpl{
		store: s,
		opts:  o,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docs see interface.go)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) Acquire(ctx context.Context, h *Handle) (err error) {
	defer func(start time.Time) { observe("acquire", start, err) }(time.Now())
	return lm.acquire(ctx, h)
}

func (lm *lockMgrImpl) WaitAndAcquire(ctx context.Context, h *Handle) (err error) {
	defer func(start time.Time) { observe("wait_and_acquire", start, err) }(time.Now())

	for {
		err := lm.acquire(ctx, h)
		if !errors.Is(err, ErrConflict) {
			return err
		}

		t := time.NewTimer(lm.opts.retryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (lm *lockMgrImpl) Renew(ctx context.Context, h *Handle, ttl time.Duration) (err error) {
	defer func(start time.Time) { observe("renew", start, err) }(time.Now())

	if ttl <= 0 {
		return ErrInvalidTTL
	}
	h.ReduceLifetime(ttl)

	rec, found, err := lm.read(ctx, h)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no lock record for %q", ErrPrecondition, h.Name())
	}

	rec.Expire = expireAt(h.Now().Add(ttl))
	return lm.persist(ctx, h, rec, false)
}

func (lm *lockMgrImpl) Exists(ctx context.Context, h *Handle) (ok bool, err error) {
	defer func(start time.Time) { observe("exists", start, err) }(time.Now())
	return lm.exists(ctx, h)
}

func (lm *lockMgrImpl) Release(ctx context.Context, h *Handle) (err error) {
	defer func(start time.Time) { observe("release", start, err) }(time.Now())

	if err := lm.store.Delete(ctx, h.StorageKey()); err != nil && !store.IsNotFound(err) {
		return storageError(err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) acquire(ctx context.Context, h *Handle) error {
	if h.IsExpired() {
		return fmt.Errorf("%w: lifetime of lock %q already elapsed", ErrExpired, h.Name())
	}

	// the handle may already hold the lock
	held, err := lm.exists(ctx, h)
	if err != nil {
		return err
	}
	if held {
		return nil
	}

	current, found, err := lm.read(ctx, h)
	if err != nil {
		return err
	}
	now := h.Now()
	if found && !current.ExpiredAt(now) {
		return ErrConflict
	}

	h.startLifetime()

	token, err := h.Token()
	if err != nil {
		return err
	}
	rec := Record{Token: &token}
	if remaining, ok := h.RemainingLifetime(); ok {
		rec.Expire = expireAt(now.Add(remaining))
	}

	// between the read above and the write below another handle may write the
	// same record, the last write wins unless create-if-absent is used
	return lm.persist(ctx, h, rec, !found && lm.opts.atomicCreate)
}

func (lm *lockMgrImpl) exists(ctx context.Context, h *Handle) (bool, error) {
	rec, found, err := lm.read(ctx, h)
	if err != nil || !found {
		return false, err
	}
	if rec.ExpiredAt(h.Now()) {
		return false, nil
	}

	token, err := h.Token()
	if err != nil {
		return false, err
	}
	return rec.Token != nil && *rec.Token == token, nil
}

// read loads the record of the handle, found is false if there is none
func (lm *lockMgrImpl) read(ctx context.Context, h *Handle) (rec Record, found bool, err error) {
	data, err := lm.store.Read(ctx, h.StorageKey())
	if store.IsNotFound(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, storageError(err)
	}

	rec, err = DecodeRecord(data)
	if err != nil {
		return Record{}, false, storageError(err)
	}
	return rec, true, nil
}

// persist stores the record and fails if the handle expired while doing so.
// If create is set and the store supports it, the record is only written if absent.
func (lm *lockMgrImpl) persist(ctx context.Context, h *Handle, rec Record, create bool) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return storageError(err)
	}

	written := false
	if c, ok := lm.store.(store.ICreator); ok && create {
		created, err := c.Create(ctx, h.StorageKey(), data)
		switch {
		case store.IsUnsupported(err):
			// fall back to a plain write
		case err != nil:
			return storageError(err)
		case !created:
			return ErrConflict
		default:
			written = true
		}
	}

	if !written {
		if err := lm.store.Write(ctx, h.StorageKey(), data); err != nil {
			return storageError(err)
		}
	}

	if h.IsExpired() {
		return fmt.Errorf("%w: saving lock took too long", ErrExpired)
	}
	return nil
}
