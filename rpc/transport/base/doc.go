// Package base implements the stream transport shared by the tcp and unix
// packages. Protocol specific code is injected through IClientConnector and
// IServerConnector.
//
// Every message travels in a frame:
//
//	shardId   uint64 big endian
//	requestID uint64 big endian
//	length    uint32 big endian
//	payload   length bytes
//
// Key Components:
//
//   - clientTransport: keeps ConnectionsPerEndpoint connections per endpoint,
//     selects them round-robin and correlates responses by request id. A
//     reader goroutine per connection reconnects after the connection broke
//     and fails all requests that were in flight on it.
//
//   - serverTransport: accepts connections and runs up to maxWorkersPerConn
//     requests of one connection concurrently. Read buffers are pooled with
//     sync.Pool.
//
// All public methods are safe for concurrent use.
package base
