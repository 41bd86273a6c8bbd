// Package tcp implements the TCP socket transport of xDB. It provides concrete
// implementations of the base package's connector interfaces.
//
// Key Components:
//
//   - clientConnector: Dials with a timeout and disables Nagle's algorithm
//
//   - serverConnector: Listens on host:port and applies the socket options of the
//     server configuration (no delay, keep-alive, linger) to accepted connections
package tcp
