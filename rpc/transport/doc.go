// Package transport defines the interfaces of the byte streams xDB speaks its
// text protocol over. It provides a common contract that all transport
// implementations must fulfill, so server and client do not depend on a
// specific socket type.
//
// Key Components:
//
//   - IServerTransport: Creates listeners. The server runs its own accept loop
//     on the returned net.Listener.
//
//   - IClientTransport: Dials a server, including retries.
//
// Implementations live in the tcp and unix sub packages, both built on the
// connector abstraction of the base package.
package transport
