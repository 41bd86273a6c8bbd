// Package store provides the interface of a single xDB database: a named
// key-value table that is persisted to one file.
// It serves as an abstraction layer over the lower-level db.KVDB implementations, adding
// persistence, operation statistics and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: The core abstraction used by the server and by embedding
//     applications. Every database of a server is one IStore.
//
//   - Error System: A structured error reporting mechanism using typed return codes
//     (RetCode) and descriptive messages. A *Error wraps the underlying error, so
//     callers can still match sentinel errors of the db and codec packages with errors.Is.
//
//   - DBFactory: A function type that abstracts the creation of the underlying db.KVDB
//     instance, so a store can run on any table implementation.
//
// Implementations:
//
//	- Local Store (lstore): Wraps one db.KVDB and persists it with the codec package.
//	  It is also the embeddable API for applications that want a single database
//	  without running a server.
//	  Available in the "github.com/ValentinKolb/xdb/lib/store/lstore" package.
package store
