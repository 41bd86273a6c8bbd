// Package cmd implements the command-line interface of xDB. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the xDB server
//   - kv: Client commands (ping, set, get, del, listdbs, save, saveall, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables with the prefix XDB_
// (e.g. XDB_ENDPOINT), .env and .env.local in the working directory are loaded first.
//
// See xdb -help for a list of all commands.
package cmd
