package db

import (
	"errors"
	"time"
)

// --------------------------------------------------------------------------
// Limits
// --------------------------------------------------------------------------

const (
	// MaxKeySize is the maximum length of a key in bytes
	MaxKeySize = 127
	// MaxValueSize is the maximum length of a value in bytes
	MaxValueSize = 4095
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrEmptyKey      = errors.New("key must not be empty")
	ErrKeyTooLarge   = errors.New("key exceeds maximum size")
	ErrValueTooLarge = errors.New("value exceeds maximum size")
	ErrClosed        = errors.New("database is closed")
)

// CheckEntry validates key and value against the size limits
func CheckEntry(key, value string) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if len(value) > MaxValueSize {
		return ErrValueTooLarge
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplXTable Implementation = "xtable"
)

// Entry is a single key-value pair as it is stored and persisted.
// ExpireAt is an absolute unix timestamp in seconds, 0 means the entry never expires.
type Entry struct {
	Key      string
	Value    string
	ExpireAt int64
}

// Expired reports whether the entry is expired at the given point in time.
// An entry whose expiry equals now is already expired.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpireAt != 0 && e.ExpireAt <= now.Unix()
}

type DatabaseInfo struct {
	SizeBytes int            `json:"size_bytes"`
	Entries   int            `json:"entries"`
	DbType    Implementation `json:"db_type"`
	Metadata  interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations.
// All methods must be safe for concurrent use.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or updates an entry. If the key already exists, the value and the
	// expiry are overwritten. ttlSeconds > 0 sets the expiry to now+ttlSeconds,
	// any other value removes the expiry.
	Put(key, value string, ttlSeconds int64) (err error)

	// PutAt works like Put but takes an absolute expiry (unix seconds, 0 = none).
	// It is used to restore persisted entries without shifting their expiry.
	PutAt(key, value string, expireAt int64) (err error)

	// Delete removes the entry with the specified key.
	// The return value reports whether an entry was removed.
	Delete(key string) (deleted bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves a copy of the value for a key.
	// Expired entries are removed when they are found and reported as a miss.
	Get(key string) (value string, loaded bool)

	// ForEachLive calls fn for every entry that is not expired at the moment it
	// is visited. Iteration stops when fn returns false. Implementations must not
	// hold more than one internal lock at a time while iterating, so concurrent
	// writers may or may not be observed.
	ForEachLive(fn func(entry Entry) bool)

	// Len returns the number of stored entries (expired entries that were not yet
	// collected are included).
	Len() int

	// --------------------------------------------------------------------------
	// Metadata
	// --------------------------------------------------------------------------

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Now returns the current time as seen by the database. Expiry checks are
	// made against it.
	Now() (now time.Time)

	// Close releases all storage held by the database.
	Close() (err error)
}
