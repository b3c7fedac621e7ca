// Package lstore implements a local, in-memory, single-process store based on the
// store.IStore interface. Data is kept in a concurrent xsync map and is not
// persisted between process restarts.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Values are copied on the way in and on the way out
//   - Atomic create-if-absent (store.ICreator) through LoadOrStore
//   - Thread-safe operations for concurrent access
//
// Usage Example:
//
//	s := lstore.NewLocalStore()
//	locks := lockmgr.NewLockManager(s)
//
// Suitable Use Cases:
//
//	The local store is ideal for:
//	- Coordinating goroutines of a single process through the lock engine
//	- Testing and development environments
//	- Backing a shard of the rpc server whose clients run elsewhere
//
// For locks shared between hosts use a persistent or networked backend
// (fsstore, boltstore, redisstore, sqlstore) or the replicated dstore.
package lstore
