// Package db provides a standardized interface for key-value database implementations.
// It defines the KVDB interface that allows consistent interaction with the in-memory
// table engines while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for key-value operations with optional TTL
//   - The Entry type shared by engines and the persistence codec
//   - Size limits for keys and values (MaxKeySize, MaxValueSize)
//   - Metadata reporting through DatabaseInfo
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Put, PutAt, Get, Delete),
//     iteration over live entries for persistence (ForEachLive) and metadata
//     retrieval (GetInfo).
//
//   - Entry: A key, a value and an absolute expiry in unix seconds. An entry is
//     expired once its expiry is reached (expiry <= now), an expiry of zero means
//     the entry never expires.
//
//   - Errors: Sentinel errors for invalid entries (ErrEmptyKey, ErrKeyTooLarge,
//     ErrValueTooLarge) and for closed databases (ErrClosed).
//
// Note on Expiration:
//   - Expiration is lazy. Expired entries stay in memory until they are read
//     (Get removes them) or until the table is persisted and loaded again
//     (expired entries are never written).
//   - Get() must never return an expired entry.
//
// Related Packages:
//
// The engines/xtable package (github.com/ValentinKolb/xdb/lib/db/engines/xtable) provides
// the sharded hash table implementation of the KVDB interface.
//
// The codec package (github.com/ValentinKolb/xdb/lib/db/codec) serializes the live
// entries of a KVDB to the binary record format used for database files.
//
// The testing package (github.com/ValentinKolb/xdb/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
