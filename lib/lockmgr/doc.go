// Package lockmgr implements a best-effort distributed lock on top of any
// store.IStore. The only shared state is one small record per resource name,
// so any number of processes (and lock managers) can coordinate through the
// same store without talking to each other.
//
// The lockmgr keeps no state besides the record and always re-reads it before
// deciding. It is safe to create many lock managers on the same store.
//
// Lock Record:
//
//	Records are JSON objects {"token": "...", "expire": 1700000002.1}. The token
//	proves which handle wrote the record, expire is an absolute unix time in
//	fractional seconds. A record without expire is held until it is deleted.
//	Records are stored under StorageKey(name):
//
//	  sf.<sanitized name>.<7 char fingerprint>.lock
//
// Handles:
//
//	A Handle is one acquisition attempt. It holds the resource name, an
//	optional ttl, a lazily generated 256 bit token and the lifetime
//	bookkeeping used to detect that the handle expired during a slow write.
//
// Acquire:
//
//	1. If the handle already holds the lock, nothing happens.
//	2. The record is read. A present record that is not expired is a conflict.
//	3. A fresh record with the handle's token (and expiry, if the handle has a
//	   ttl) is written.
//	4. If the handle expired during the write, ErrExpired is returned.
//
//	Steps 2 and 3 are not atomic. Two handles that both see no record may both
//	write it and the last write wins. WithAtomicCreate closes this window for
//	absent records on stores implementing store.ICreator.
//
// Caveats:
//
//   - Renew extends the stored record without comparing the token.
//   - Release deletes the record without comparing the token.
//
// Usage Example:
//
//	mgr := lockmgr.NewLockManager(lstore.NewLocalStore())
//	h := lockmgr.NewHandle("job-42", lockmgr.WithTTL(30*time.Second))
//
//	if err := mgr.Acquire(ctx, h); errors.Is(err, lockmgr.ErrConflict) {
//	    // someone else holds the lock
//	}
//	defer mgr.Release(ctx, h)
//
// Errors:
//
//	ErrConflict, ErrExpired, ErrStorage, ErrPrecondition and ErrInvalidTTL can be
//	tested with errors.Is. Storage errors also wrap the *store.Error of the backend.
package lockmgr
