// Package rpc contains the storage server and the remote store client that
// let lock holders on different machines share one backend.
//
// Subpackages:
//
//   - common: the Message protocol, server and client configuration, logging.
//
//   - transport: pluggable network layer (TCP, Unix sockets, HTTP).
//
//   - serializer: Message encodings (binary, JSON, GOB).
//
//   - client: a store.IStore that forwards to a shard of a remote server.
//
//   - server: hosts the shards and answers store requests.
//
// Only byte level store operations cross the wire. Locking decisions are
// made by lockmgr in the client process.
package rpc
