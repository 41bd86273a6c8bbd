// Package common provides the data structures and utilities shared by the
// xDB server, its transports and the client.
//
// The package focuses on:
//   - The text protocol: command parsing and reply encoding
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the Dragonboat logger package
//
// Key Components:
//
//   - Command / CommandType: A command line split on whitespace. The first token
//     selects the command (case-sensitive), the remaining tokens are its arguments.
//
//   - Append* functions: Reply encoders. Every reply is one or more lines ending
//     in "\r\n": "+text" for status replies, "-ERR text" for errors, ":n" for
//     integers, "$len" followed by the payload line for values ("$-1" for a
//     missing value) and "*n" followed by n values for lists.
//
//   - ServerConfig: Configuration of a server node: endpoint and transport,
//     databases, connection limits, autosave interval and observability settings.
//     Validate reports all problems of a configuration at once.
//
//   - ClientConfig: Configuration for client components, controlling the endpoint,
//     timeouts and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's logger
//     registry, so every package can use logger.GetLogger with a consistent format.
package common
