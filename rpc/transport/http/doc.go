// Package http implements an HTTP-based transport layer for the lock storage
// RPC system.
//
// Every request is a POST to /{shardId} on one of the configured endpoints,
// the body carries the serialized message. The server additionally exposes
// GET /metrics with the process metrics in the Prometheus text format.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Endpoints are
//     selected round-robin, a retry moves on to the next endpoint.
//
//   - httpServerTransport: Implements IRPCServerTransport. Requests are logged
//     when the server runs with the debug log level.
package http
