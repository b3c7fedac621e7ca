package transport

import (
	"github.com/ValentinKolb/dLock/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport for every request and receives the
// shard the request is addressed to.
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the server side of the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called for every request
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport and serves requests until Close is called.
	// It returns nil after Close.
	Listen(config common.ServerConfig) error
	// Close stops listening for new requests
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
