package xtable

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/engines/xtable/internal"
	"github.com/ValentinKolb/xdb/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultNumShards = 1024 // Number of shards if no options are given
)

// --------------------------------------------------------------------------
// Core table structure
// --------------------------------------------------------------------------

// xtableImpl is a hash table with a fixed number of shards.
// Every shard is a slice of entries guarded by its own mutex.
type xtableImpl struct {
	shards []*internal.Shard // Fixed for the lifetime of the table
	clock  func() time.Time  // Source of the current time for expiry
	closed atomic.Bool
}

// DBOptions configures the table during initialization
type DBOptions struct {
	NumShards int              // Number of shards (0 = DefaultNumShards)
	Clock     func() time.Time // Time source (nil = time.Now)
}

// DefaultOptions returns the default table options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: DefaultNumShards,
		Clock:     time.Now,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewXTable creates a new table with the specified options (optional)
func NewXTable(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}

	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = DefaultNumShards
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	shards := make([]*internal.Shard, numShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	return &xtableImpl{
		shards: shards,
		clock:  clock,
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Put inserts or updates an entry. ttlSeconds > 0 sets an expiry relative to now.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *xtableImpl) Put(key, value string, ttlSeconds int64) error {
	var expireAt int64
	if ttlSeconds > 0 {
		expireAt = t.clock().Unix() + ttlSeconds
	}
	return t.PutAt(key, value, expireAt)
}

// PutAt inserts or updates an entry with an absolute expiry (0 = none).
// An existing entry keeps its position in the shard.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *xtableImpl) PutAt(key, value string, expireAt int64) error {
	if err := db.CheckEntry(key, value); err != nil {
		return err
	}

	shard := internal.GetShard(key, t.shards)
	shard.Mu.Lock()
	defer shard.Mu.Unlock()

	if t.closed.Load() {
		return db.ErrClosed
	}

	if i := shard.Find(key); i >= 0 {
		shard.Entries[i].Value = value
		shard.Entries[i].ExpireAt = expireAt
		return nil
	}

	shard.Append(db.Entry{Key: key, Value: value, ExpireAt: expireAt})
	return nil
}

// Delete removes the entry for key and reports whether it existed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *xtableImpl) Delete(key string) bool {
	shard := internal.GetShard(key, t.shards)
	shard.Mu.Lock()
	defer shard.Mu.Unlock()

	i := shard.Find(key)
	if i < 0 {
		return false
	}
	shard.RemoveAt(i)
	return true
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the value for a key.
// An expired entry is removed from its shard and reported as a miss.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *xtableImpl) Get(key string) (string, bool) {
	shard := internal.GetShard(key, t.shards)
	shard.Mu.Lock()
	defer shard.Mu.Unlock()

	i := shard.Find(key)
	if i < 0 {
		return "", false
	}

	if shard.Entries[i].Expired(t.clock()) {
		shard.RemoveAt(i)
		return "", false
	}

	// strings are immutable, so handing out the stored value is a copy for the caller
	return shard.Entries[i].Value, true
}

// Now returns the current time of the table clock
func (t *xtableImpl) Now() time.Time {
	return t.clock()
}

// ForEachLive visits all entries that are not expired at the moment their shard is visited.
// Each shard is locked on its own, there is no snapshot across shards.
//
// Thread-safety: This method is thread-safe. fn must not call back into the table.
func (t *xtableImpl) ForEachLive(fn func(entry db.Entry) bool) {
	for _, shard := range t.shards {
		if !t.rangeShard(shard, fn) {
			return
		}
	}
}

// rangeShard calls fn for every live entry of one shard while holding the shard lock
func (t *xtableImpl) rangeShard(shard *internal.Shard, fn func(entry db.Entry) bool) bool {
	shard.Mu.Lock()
	defer shard.Mu.Unlock()

	now := t.clock()
	for _, entry := range shard.Entries {
		if entry.Expired(now) {
			continue
		}
		if !fn(entry) {
			return false
		}
	}
	return true
}

// Len returns the number of stored entries, shard by shard
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (t *xtableImpl) Len() int {
	total := 0
	for _, shard := range t.shards {
		shard.Mu.Lock()
		total += len(shard.Entries)
		shard.Mu.Unlock()
	}
	return total
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the table
func (t *xtableImpl) GetInfo() db.DatabaseInfo {
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	shardSizes := make([]float64, len(t.shards))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entries int
		expired int
	)
	wg.Add(len(t.shards))

	now := t.clock()
	for shardIndex, shard := range t.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()

			s.Mu.Lock()
			size := len(s.Entries)
			expiredCount := 0
			for j, entry := range s.Entries {
				if j < samplesPerShard {
					histogram.AddSample(len(entry.Value))
				}
				if entry.Expired(now) {
					expiredCount++
				}
			}
			s.Mu.Unlock()

			mu.Lock()
			defer mu.Unlock()
			shardSizes[i] = float64(size)
			entries += size
			expired += expiredCount
		}(shardIndex, shard)
	}
	wg.Wait()

	// key and expiry overhead per entry
	entryOverhead := db.MaxKeySize/2 + 8
	avgSize := (histogram.MedianEstimate()*60+histogram.AverageSize()*40)/100 + entryOverhead

	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		ExpiredBacklog    int                    `json:"expired_backlog"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(t.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		ExpiredBacklog:    expired,
		Info:              "SizeBytes is an estimate based on sampled value sizes.",
	}

	return db.DatabaseInfo{
		SizeBytes: avgSize * entries,
		Entries:   entries,
		DbType:    db.ImplXTable,
		Metadata:  meta,
	}
}

// Close releases the storage of all shards. Writes after Close fail with db.ErrClosed.
func (t *xtableImpl) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, shard := range t.shards {
		shard.Mu.Lock()
		shard.Release()
		shard.Mu.Unlock()
	}
	return nil
}
