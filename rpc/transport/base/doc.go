// Package base provides the foundation of the tcp and unix transports,
// independent of the specific socket type.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different socket types.
//
//   - serverTransport: Creates a listener through the connector and wraps it, so every
//     accepted connection gets the connector's socket options before the server sees it.
//
//   - clientTransport: Dials through the connector and retries failed attempts with
//     exponential backoff and jitter.
//
//   - LineReader: Bounded line framing used by both sides of the text protocol.
//     Lines end in "\n" with an optional "\r". A line above the limit is consumed
//     completely and reported as ErrLineTooLong, so the next read starts at the
//     next command.
package base
