// Package internal provides the communication protocol structures and serialization
// logic for the dstore package. It defines the format used to transmit operations
// between the store client and the replicated state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
//   - Command: write operations (Write, Create, Delete) that modify the records of a
//     shard. Commands are serialized, proposed to the RAFT cluster and executed on the
//     state machine of every replica.
//
//   - Query: read operations (Read, Size). Queries are executed locally on the state
//     machine and therefore are never serialized.
//
// Command Format:
//
//	- 1 byte: Command type
//	- 4 bytes: Key length (uint32, big endian)
//	- N bytes: Key data
//	- M bytes: Value data (absent for Delete)
//
// The types in this package are not thread-safe. RAFT applies commands sequentially,
// so no synchronization is needed on the state machine side.
package internal
