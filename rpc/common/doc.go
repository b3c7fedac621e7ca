// Package common provides the data structures shared by the storage RPC
// client, server and transports.
//
//   - Message: the request and response structure of the RPC protocol. Requests
//     carry a store operation (read, write, delete, create), responses carry the
//     result and, on failure, the store.RetCode and message of the error, so a
//     remote NotFound is still a NotFound on the client side.
//
//   - ServerConfig / ClientConfig: configuration of the RPC server (shards,
//     raft parameters, data directory) and client (endpoints, timeouts, retries),
//     including the conversion into Dragonboat configurations.
//
//   - Logger: a Dragonboat logger factory with a consistent
//     "LEVEL | package | message" format for the whole application.
package common
