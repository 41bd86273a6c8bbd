// Package rpc provides the network surface of xDB. It carries the line based
// text protocol between clients and the server.
//
// The package is organized into several subpackages:
//
//   - common: Protocol commands and reply encoding, configuration structures
//     and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets).
//
//   - client: A typed client for every command and a store.IStore backed by a
//     remote database.
//
//   - server: The server owning the databases, its connection handler, the adapter
//     from commands to store operations, autosave and metrics.
package rpc
