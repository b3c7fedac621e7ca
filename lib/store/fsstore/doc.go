// Package fsstore implements store.IStore on top of a filesystem, keeping
// one file per key. This is the backend the lock engine was originally
// designed for: any directory shared between hosts (a network mount, a
// synced volume) becomes a lock table.
//
// The filesystem is abstracted with afero, so the same code runs on the real
// disk (NewLocalFileStore) and on an in-memory filesystem in tests
// (NewFileStore(afero.NewMemMapFs())).
//
// Writes go to a uniquely named temp file that is renamed over the key, so a
// concurrent reader sees either the old or the new value, never a torn one.
//
// Stores created with NewLocalFileStore guard every mutation with an advisory
// lock on a single ".store.flock" file in the directory (gofrs/flock). This
// turns Create into an atomic create-if-absent for all processes on the same
// host. Advisory locks are not reliable across network filesystems, so on a
// shared mount the guard only narrows the race window.
package fsstore
