package base

import (
	"fmt"
	"net"

	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
}

// upgradingListener applies the connector's socket options to every accepted connection
type upgradingListener struct {
	net.Listener
	connector IServerConnector
	config    common.ServerConfig
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new server transport for the given connector
func NewBaseServerTransport(connector IServerConnector) transport.IServerTransport {
	return &serverTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) GetName() string {
	return t.connector.GetName()
}

func (t *serverTransport) Listen(config common.ServerConfig) (net.Listener, error) {
	listener, err := t.connector.Listen(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	Logger.Infof("Listening for %s connections on %s", t.connector.GetName(), listener.Addr())

	return &upgradingListener{
		Listener:  listener,
		connector: t.connector,
		config:    config,
	}, nil
}

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

// Accept waits for the next connection and upgrades it.
// A failed upgrade is logged, the connection is still returned.
func (l *upgradingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if err := l.connector.UpgradeConnection(conn, l.config); err != nil {
		Logger.Warningf("Failed to apply %s socket options to %s: %v", l.connector.GetName(), conn.RemoteAddr(), err)
	}
	return conn, nil
}
