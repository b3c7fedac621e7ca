// Package tcp implements the TCP transport for the lock storage RPC system.
// It plugs TCP specific connectors into the framing code of package base.
//
// Connections disable Nagle's algorithm and use TCP keep-alive, since lock
// traffic consists of small requests from clients that may stay idle for
// the whole lifetime of a lock.
package tcp
