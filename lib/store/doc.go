// Package store defines the storage contract the lock engine is built on.
// A lock record is just a handful of bytes under a string key, so the
// contract is deliberately small: Read, Write and Delete, plus the optional
// ICreator capability for backends that can create a key only if it is
// absent.
//
// Key Components:
//
//   - IStore Interface: The byte level abstraction shared by all backends.
//     A missing key is reported as an *Error with code RetCNotFound, both
//     from Read and from Delete. Every other failure is a storage failure.
//
//   - ICreator Interface: Optional create-if-absent primitive. The lock
//     engine uses it (when asked to) to close the race between reading an
//     absent record and writing a new one.
//
//   - Error System: A structured error with a typed return code (RetCode)
//     and a message. The code survives the rpc layer, so a NotFound on a
//     remote shard is still a NotFound for the client.
//
// Implementations:
//
//   - lstore: in-process map (xsync), used for tests and the mem backend.
//   - fsstore: one file per key on an afero filesystem.
//   - boltstore: a bucket in an embedded bbolt database file.
//   - redisstore: plain redis keys via go-redis.
//   - sqlstore: a table in sqlite or postgres via database/sql.
//   - dstore: a dragonboat RAFT group replicating the key space.
//
// The storetest package contains the conformance suite every backend runs.
package store
