package unix

import (
	"net"
	"time"

	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/ValentinKolb/dLock/rpc/transport/base"
)

const dialTimeout = 2 * time.Second

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

func (c *clientConnector) GetName() string {
	return "unix"
}

// Connect dials the socket file at endpoint
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	return net.DialTimeout("unix", endpoint, dialTimeout)
}

// NewUnixClientTransport creates a new Unix client transport
func NewUnixClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{})
}
