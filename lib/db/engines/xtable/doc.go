// Package xtable implements the in-memory hash table behind every xDB database.
// It provides an implementation of the db.KVDB interface built from a fixed number
// of independently locked shards.
//
// The package focuses on:
//   - Bounded lock contention through a fixed array of shards, each with its own mutex
//   - Lazy expiration: expired entries are removed when they are read
//   - Predictable iteration for persistence (shard by shard, entry order within a shard)
//   - Statistics about the shard distribution for monitoring
//
// Key Components:
//
//   - xtableImpl: The table structure implementing db.KVDB. The shard array is created
//     once and never resized. A key always maps to the same shard, so no operation ever
//     moves entries between shards.
//
//   - Shard (internal): A slice of db.Entry values guarded by a sync.Mutex. Lookups are
//     linear scans. The backing array grows by doubling its capacity (starting at 2),
//     removals shift trailing entries left so the order of the remaining entries is kept.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: The shard of a key is PolyHash(key) mod NumShards, where
//     PolyHash is the polynomial rolling hash h = h*31 + b (see lib/db/util). The hash
//     is unseeded and therefore identical across restarts.
//
//   - Expiry: Entries carry an absolute expiry in unix seconds taken from the table
//     clock (DBOptions.Clock, time.Now by default). An entry is expired once
//     expiry <= now. Get removes an expired entry it finds and reports a miss,
//     ForEachLive skips expired entries without removing them.
//
//   - Persistence: The table itself does not know about files. ForEachLive exposes the
//     live entries to the codec package, PutAt restores entries with their original
//     absolute expiry. ForEachLive locks one shard at a time, so a save that runs
//     concurrently with writes may observe different shards at slightly different
//     moments. There is no snapshot across shards.
//
// Concurrency:
//
//   - Operations on keys in different shards run in parallel.
//   - Operations on keys in the same shard are serialized by the shard mutex, so all
//     operations on one key are totally ordered.
//   - No operation holds more than one shard lock at a time.
package xtable
