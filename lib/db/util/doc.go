// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: The polynomial key hash and the shard index derived from it
//   - statistics: Utility tools for analyzing database characteristics and a SizeHistogram for tracking data size distribution
//
// This package is particularly useful for:
//   - Database developers implementing the KVDB interface
//   - Monitoring systems that need to track database size and distribution metrics
package util
