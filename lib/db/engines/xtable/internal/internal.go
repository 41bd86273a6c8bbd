package internal

import (
	"sync"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/util"
)

// --------------------------------------------------------------------------
// Shard Type (partition of the table)
// --------------------------------------------------------------------------

// Shard represents one slot of the table.
// It owns an ordered slice of entries with at most one entry per key.
// All fields are guarded by Mu.
type Shard struct {
	Mu      sync.Mutex
	Entries []db.Entry
}

// NewShard creates an empty shard. Storage is allocated on the first insert.
func NewShard() *Shard {
	return &Shard{}
}

// Find returns the position of key in the shard or -1
//
// Thread-safety: The caller must hold Mu.
func (s *Shard) Find(key string) int {
	for i := range s.Entries {
		if s.Entries[i].Key == key {
			return i
		}
	}
	return -1
}

// Append adds an entry at the end of the shard.
// The backing storage grows by doubling its capacity, starting at 2.
//
// Thread-safety: The caller must hold Mu.
func (s *Shard) Append(entry db.Entry) {
	if len(s.Entries) == cap(s.Entries) {
		newCap := 2
		if cap(s.Entries) > 0 {
			newCap = cap(s.Entries) * 2
		}
		grown := make([]db.Entry, len(s.Entries), newCap)
		copy(grown, s.Entries)
		s.Entries = grown
	}
	s.Entries = append(s.Entries, entry)
}

// RemoveAt removes the entry at position i and shifts all trailing entries
// one position to the left, so the order of the remaining entries is kept.
//
// Thread-safety: The caller must hold Mu.
func (s *Shard) RemoveAt(i int) {
	copy(s.Entries[i:], s.Entries[i+1:])
	s.Entries[len(s.Entries)-1] = db.Entry{} // drop the string references
	s.Entries = s.Entries[:len(s.Entries)-1]
}

// Release drops the backing storage of the shard
//
// Thread-safety: The caller must hold Mu.
func (s *Shard) Release() {
	s.Entries = nil
}

// GetShard returns the shard responsible for a key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key string, shards []*T) *T {
	return shards[util.ShardIndex(key, len(shards))]
}
