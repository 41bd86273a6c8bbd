package testing

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/codec"
)

// DBFactory creates a new instance of a KVDB implementation that reads the time from clock
type DBFactory func(clock func() time.Time) db.KVDB

// FakeClock is a manually advanced time source for expiry tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock starting at a fixed point in time
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(1_700_000_000, 0)}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(time.Now))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(time.Now))
		})

		t.Run("KeyExpiry", func(t *testing.T) {
			clock := NewFakeClock()
			testKeyExpiry(t, factory(clock.Now), clock)
		})

		t.Run("ExpiryBoundary", func(t *testing.T) {
			clock := NewFakeClock()
			testExpiryBoundary(t, factory(clock.Now), clock)
		})

		t.Run("ManyExpiringKeys", func(t *testing.T) {
			clock := NewFakeClock()
			testManyExpiringKeys(t, factory(clock.Now), clock)
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(time.Now))
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory(time.Now))
		})

		t.Run("ConcurrentDistinctKeys", func(t *testing.T) {
			testConcurrentDistinctKeys(t, factory(time.Now))
		})

		t.Run("ConcurrentSameKey", func(t *testing.T) {
			testConcurrentSameKey(t, factory(time.Now))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory(time.Now))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"

	if err := database.Put(testKey, "test-value1", 0); err != nil {
		t.Fatalf("Unexpected error during Put: %v", err)
	}

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if result != "test-value1" {
		t.Errorf("Expected value %s, got %s", "test-value1", result)
	}

	if err := database.Put(testKey, "test-value2", 0); err != nil {
		t.Fatalf("Unexpected error during Put: %v", err)
	}

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after overwrite", testKey)
	}
	if result != "test-value2" {
		t.Errorf("Expected value %s, got %s", "test-value2", result)
	}

	if database.Len() != 1 {
		t.Errorf("Overwrite must not create a second entry, got %d entries", database.Len())
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "delete-test-key"

	if database.Delete(testKey) {
		t.Errorf("Delete of an absent key must report false")
	}

	_ = database.Put(testKey, "delete-test-value", 0)

	if !database.Delete(testKey) {
		t.Errorf("Delete of a present key must report true")
	}

	if _, exists := database.Get(testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if database.Delete(testKey) {
		t.Errorf("Second Delete must report false")
	}
}

func testKeyExpiry(t *testing.T, database db.KVDB, clock *FakeClock) {
	defer database.Close()

	_ = database.Put("expiring-key", "expiring-value", 10)
	_ = database.Put("persistent-key", "persistent-value", 0)
	_ = database.Put("negative-ttl-key", "value", -5)

	clock.Advance(9 * time.Second)

	result, exists := database.Get("expiring-key")
	if !exists {
		t.Errorf("Key should still exist before the ttl elapsed")
	}
	if result != "expiring-value" {
		t.Errorf("Expected value %s, got %s", "expiring-value", result)
	}

	clock.Advance(2 * time.Second)

	if _, exists = database.Get("expiring-key"); exists {
		t.Errorf("Key should have expired")
	}
	if database.Len() != 2 {
		t.Errorf("Expired key should have been removed by Get, got %d entries", database.Len())
	}

	clock.Advance(1000 * time.Hour)
	if _, exists = database.Get("persistent-key"); !exists {
		t.Errorf("Key with TTL=0 should never expire")
	}
	if _, exists = database.Get("negative-ttl-key"); !exists {
		t.Errorf("Key with negative TTL should never expire")
	}

	// overwriting removes the expiry
	_ = database.Put("overwrite-key", "v1", 5)
	_ = database.Put("overwrite-key", "v2", 0)
	clock.Advance(10 * time.Second)
	if result, exists = database.Get("overwrite-key"); !exists || result != "v2" {
		t.Errorf("Overwrite without TTL should clear the expiry, got %q (exists=%v)", result, exists)
	}
}

func testExpiryBoundary(t *testing.T, database db.KVDB, clock *FakeClock) {
	defer database.Close()

	if !database.Now().Equal(clock.Now()) {
		t.Errorf("Now should follow the injected clock, got %v, want %v", database.Now(), clock.Now())
	}

	expireAt := clock.Now().Unix() + 5
	_ = database.PutAt("boundary-key", "value", expireAt)

	clock.Advance(4 * time.Second)
	if _, exists := database.Get("boundary-key"); !exists {
		t.Errorf("Key should exist one second before its expiry")
	}

	clock.Advance(1 * time.Second)
	if _, exists := database.Get("boundary-key"); exists {
		t.Errorf("Key should be expired when expiry == now")
	}
}

func testManyExpiringKeys(t *testing.T, database db.KVDB, clock *FakeClock) {
	defer database.Close()

	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("expire-key-%d", i)
		ttl := int64(i % 100)
		if err := database.Put(key, fmt.Sprintf("expire-value-%d", i), ttl); err != nil {
			t.Fatalf("Put failed for %s: %v", key, err)
		}
	}

	for offset := int64(0); offset <= 100; offset += 10 {
		for i := 0; i < numKeys; i++ {
			key := fmt.Sprintf("expire-key-%d", i)
			ttl := int64(i % 100)

			_, exists := database.Get(key)
			shouldExist := ttl == 0 || ttl > offset
			if exists != shouldExist {
				t.Errorf("Key %s at offset %d (TTL=%d): exists=%v, expected %v", key, offset, ttl, exists, shouldExist)
			}
		}
		clock.Advance(10 * time.Second)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	clock := NewFakeClock()
	database := factory(clock.Now)
	database2 := factory(clock.Now)

	defer database.Close()
	defer database2.Close()

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		ttl := int64(0)
		if i%2 == 1 {
			ttl = 3600
		}
		_ = database.Put(key, fmt.Sprintf("save-load-test-value-%d", i), ttl)
	}
	_ = database.Put("short-lived", "gone", 1)
	clock.Advance(2 * time.Second)

	var buf bytes.Buffer
	if err := codec.Encode(&buf, database); err != nil {
		t.Fatalf("Unexpected error during Encode: %v", err)
	}

	loaded, err := codec.DecodeAt(&buf, database2, clock.Now())
	if err != nil {
		t.Fatalf("Unexpected error during Decode: %v", err)
	}
	if loaded != numEntries {
		t.Errorf("Expected %d restored entries, got %d", numEntries, loaded)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expectedValue := fmt.Sprintf("save-load-test-value-%d", i)

		actualValue, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Decode", key)
			continue
		}
		if actualValue != expectedValue {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	if _, exists := database2.Get("short-lived"); exists {
		t.Errorf("Expired entry must not be persisted")
	}

	// the relative ttl is preserved as an absolute expiry
	clock.Advance(3600 * time.Second)
	if _, exists := database2.Get("save-load-test-key-1"); exists {
		t.Errorf("Restored entry should expire at its original expiry")
	}
	if _, exists := database2.Get("save-load-test-key-0"); !exists {
		t.Errorf("Restored entry without expiry should not expire")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	if err := database.Put("", "value for empty key", 0); err != db.ErrEmptyKey {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}

	if err := database.Put("empty-value-key", "", 0); err != nil {
		t.Errorf("Empty values must be accepted, got %v", err)
	}
	if result, exists := database.Get("empty-value-key"); !exists || result != "" {
		t.Errorf("Key for empty value not found after Put")
	}

	maxKey := strings.Repeat("k", db.MaxKeySize)
	maxValue := strings.Repeat("v", db.MaxValueSize)
	if err := database.Put(maxKey, maxValue, 0); err != nil {
		t.Errorf("Key and value at the size limit must be accepted, got %v", err)
	}
	if result, exists := database.Get(maxKey); !exists || result != maxValue {
		t.Errorf("Value mismatch for key at the size limit")
	}

	if err := database.Put(maxKey+"k", "v", 0); err != db.ErrKeyTooLarge {
		t.Errorf("Expected ErrKeyTooLarge, got %v", err)
	}
	if err := database.Put("large-value-key", maxValue+"v", 0); err != db.ErrValueTooLarge {
		t.Errorf("Expected ErrValueTooLarge, got %v", err)
	}
	if _, exists := database.Get("large-value-key"); exists {
		t.Errorf("Rejected Put must not mutate the table")
	}

	if err := database.Close(); err != nil {
		t.Errorf("Unexpected error during Close: %v", err)
	}
	if err := database.Put("after-close", "v", 0); err != db.ErrClosed {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	prefix := "collision-test-"
	numKeys := 5000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_ = database.Put(key, fmt.Sprintf("value-%d", i), 0)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := fmt.Sprintf("value-%d", i)

		actualValue, exists := database.Get(key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if actualValue != expectedValue {
			t.Errorf("Value for key %s does not match: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		database.Delete(fmt.Sprintf("%s%d", prefix, i))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := database.Get(key)

		if i%2 == 0 && exists {
			t.Errorf("Key %s should be deleted", key)
		} else if i%2 == 1 && !exists {
			t.Errorf("Key %s should still exist", key)
		}
	}
}

func testConcurrentDistinctKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	numWorkers := 16
	keysPerWorker := 500

	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < keysPerWorker; i++ {
				key := fmt.Sprintf("key_%d_%d", workerId, i)
				if err := database.Put(key, "value_"+key, 0); err != nil {
					failures.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	if failures.Load() > 0 {
		t.Fatalf("%d concurrent Puts failed", failures.Load())
	}

	for w := 0; w < numWorkers; w++ {
		for i := 0; i < keysPerWorker; i++ {
			key := fmt.Sprintf("key_%d_%d", w, i)
			if value, exists := database.Get(key); !exists || value != "value_"+key {
				t.Errorf("Key %s: got %q (exists=%v)", key, value, exists)
			}
		}
	}

	if database.Len() != numWorkers*keysPerWorker {
		t.Errorf("Expected %d entries, got %d", numWorkers*keysPerWorker, database.Len())
	}
}

func testConcurrentSameKey(t *testing.T, database db.KVDB) {
	defer database.Close()

	values := []string{
		strings.Repeat("a", 1000),
		strings.Repeat("b", 2000),
		strings.Repeat("c", 3000),
	}
	valid := map[string]bool{}
	for _, v := range values {
		valid[v] = true
	}

	var (
		wg   sync.WaitGroup
		torn atomic.Int32
	)

	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(workerId int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				_ = database.Put("hot-key", values[(workerId+i)%len(values)], 0)
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if value, exists := database.Get("hot-key"); exists && !valid[value] {
					torn.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if torn.Load() > 0 {
		t.Errorf("Observed %d torn values", torn.Load())
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	type operation struct {
		op    string
		key   string
		value string
	}

	numOperations := 10_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "set"
		case 7, 8:
			op = "get"
		case 9:
			op = "delete"
		}

		key := fmt.Sprintf("key-%d", i)
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		}

		var value string
		if op == "set" {
			valueSize := 64
			if i%10 == 0 {
				valueSize = 1024
			}
			value = strings.Repeat(string(rune('a'+i%26)), valueSize)
		}

		operations[i] = operation{op, key, value}
	}

	allKeys := make(map[string]bool)
	for _, op := range operations {
		allKeys[op.key] = true
	}

	numWorkers := 8
	opsPerWorker := numOperations / numWorkers

	var (
		wg         sync.WaitGroup
		errorCount atomic.Int32
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			for i := start; i < start+opsPerWorker; i++ {
				op := operations[i]
				switch op.op {
				case "set":
					if err := database.Put(op.key, op.value, 0); err != nil {
						errorCount.Add(1)
					}
				case "get":
					database.Get(op.key)
				case "delete":
					database.Delete(op.key)
				}
			}
		}(w)
	}
	wg.Wait()

	if errorCount.Load() > 0 {
		t.Fatalf("Test had %d errors during parallel operations", errorCount.Load())
	}

	// every key seen by ForEachLive must be readable with the same value
	seen := 0
	live := make(map[string]string)
	database.ForEachLive(func(entry db.Entry) bool {
		seen++
		live[entry.Key] = entry.Value
		return true
	})

	if seen != len(live) {
		t.Errorf("ForEachLive reported %d entries for %d distinct keys", seen, len(live))
	}

	for key := range allKeys {
		value, exists := database.Get(key)
		liveValue, isLive := live[key]
		if exists != isLive {
			t.Errorf("Consistency error: Key %s exists=%v but ForEachLive reported %v", key, exists, isLive)
			continue
		}
		if exists && value != liveValue {
			t.Errorf("Value mismatch for key %s between Get and ForEachLive", key)
		}
	}
}
