// Package transport defines the interfaces for moving opaque request and
// response frames between the lock clients and the storage server.
//
// A transport knows nothing about lock records or store operations. It
// carries a shard id and a byte slice in each direction; the serializer and
// the rpc server give the bytes their meaning.
//
// Key Components:
//
//   - IRPCClientTransport: connects to one or more endpoints and sends
//     requests.
//
//   - IRPCServerTransport: listens on an endpoint and passes every request
//     to the registered ServerHandleFunc.
//
// Implementations live in the sub packages http, tcp and unix; tcp and unix
// share the framing code of package base.
package transport
