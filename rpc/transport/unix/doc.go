// Package unix implements the Unix domain socket transport of xDB, for clients
// running on the same machine as the server.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. A socket file left over
//     from a previous run is removed before listening.
package unix
