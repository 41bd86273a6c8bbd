// Package client implements clients for the xDB text protocol.
//
// The package focuses on:
//   - A typed API for every server command
//   - Integration with the transport layer (tcp, unix)
//   - Conversion between error replies and Go errors
//
// Key Components:
//
//   - Client: A single connection to a server. Requests are serialized, each command
//     is written and its reply is read before the next command is sent. Error replies
//     ("-ERR <msg>") are returned as *ServerError. After a network error the connection
//     is dropped and the next request reconnects through the transport, which retries
//     with backoff, and selects the previously selected database again.
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface for one remote database. Errors are mapped to store.Error codes.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.Endpoint = "localhost:6379"
//
//	c, err := client.NewClient(config, tcp.NewTCPClientTransport())
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if _, err := c.SelectDB(1); err != nil {
//		return err
//	}
//	_ = c.Set("session", "abc", 60)
//	value, found, _ := c.Get("session")
//
// Keys and values are sent as single tokens of a command line, so they must not
// be empty or contain whitespace. Such arguments are rejected with ErrInvalidArgument
// before anything is sent.
//
// Thread Safety:
//
//	Client and the rpc store are safe for concurrent use. Concurrent callers share
//	one connection and wait for each other.
package client
