package transport

import (
	"net"

	"github.com/ValentinKolb/xdb/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerTransport is the interface for the server side of a transport.
// It only creates the listener, the server owns the accept loop.
type IServerTransport interface {
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
	// Listen creates a listener for config.Endpoint.
	// Connections returned by the listener's Accept are already upgraded
	// with the transport specific socket options.
	Listen(config common.ServerConfig) (net.Listener, error)
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport is the interface for the client side of a transport
type IClientTransport interface {
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
	// Connect establishes a connection to config.Endpoint, retrying up to config.RetryCount times
	Connect(config common.ClientConfig) (net.Conn, error)
}
