// Package boltstore implements store.IStore on an embedded bbolt database.
// All records live in a single bucket ("locks"). Create runs its existence
// check and its write in one update transaction and is therefore atomic.
//
// bbolt holds an exclusive lock on the database file while it is open. The
// store is meant for many goroutines of one process (or one dlock server
// shard), not for several processes opening the same file; those would wait
// for the open timeout and fail.
package boltstore
