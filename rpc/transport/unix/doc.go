// Package unix implements the transport for the lock storage RPC system on
// Unix domain sockets. It is meant for clients running on the same machine
// as the storage server.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting connection pooling, request routing and error handling from the
// base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Removes a stale socket file and creates the listener
package unix
