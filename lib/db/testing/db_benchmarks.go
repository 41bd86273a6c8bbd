package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/codec"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementation
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory(time.Now))
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, factory(time.Now))
	})

	b.Run("PutLargeValue", func(b *testing.B) {
		benchmarkPutLargeValue(b, factory(time.Now))
	})

	b.Run("PutWithExpiry", func(b *testing.B) {
		benchmarkPutWithExpiry(b, factory(time.Now))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory(time.Now))
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, factory(time.Now))
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory(time.Now))
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory(time.Now))
	})

	b.Run("MixedUsageWithExpiry", func(b *testing.B) {
		benchmarkMixedOperationsWithExpiry(b, factory(time.Now))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation
func benchmarkPut(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	var worker int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := atomic.AddInt64(&worker, 1)
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d-%d", id, counter)
			database.Put(key, fmt.Sprintf("test-value-%d", counter), 0)
			counter++
		}
	})
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Put(fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i), 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			database.Put(key, fmt.Sprintf("test-value-%d", counter), 0)
			counter++
		}
	})
}

// Benchmark for Put operation with values at the size limit
func benchmarkPutLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	largeValue := strings.Repeat("x", db.MaxValueSize)
	numKeys := 10000

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			database.Put(key, largeValue, 0)
			counter++
		}
	})
}

// benchmarkPutWithExpiry tests the performance of Put with a TTL
func benchmarkPutWithExpiry(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := int64(0)
		for pb.Next() {
			key := fmt.Sprintf("test-expiry-key-%d", counter%10000)
			database.Put(key, fmt.Sprintf("test-expiry-value-%d", counter), counter%60+1)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Put(fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i), 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

// Parallel benchmarking for Get operation (with key miss)
func benchmarkGetNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	const key = "test-key"

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			database.Get(key)
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Put(keys[i], fmt.Sprintf("test-value-%d", i), 0)
	}

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys
			database.Delete(keys[idx])
		}
	})
}

// Benchmark for encoding and decoding a whole table.
// Parallelization is not meaningful here since both walk the entire table.
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory(time.Now)

	b.Cleanup(func() {
		database.Close()
	})

	numEntries := 10000
	for i := 0; i < numEntries; i++ {
		database.Put(fmt.Sprintf("test-key-%d", i), fmt.Sprintf("test-value-%d", i), 0)
	}

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			codec.Encode(&buf, database)
		}
	})

	var loadBuf bytes.Buffer
	codec.Encode(&loadBuf, database)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory(time.Now)
			codec.Decode(bytes.NewReader(data), loadDB)
			loadDB.Close()
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Put(keys[i], fmt.Sprintf("test-value-%d", i), 0)
	}

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0

		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys

			// every 10th operation uses a new key
			var key string
			if localCounter%10 == 0 {
				key = fmt.Sprintf("new-key-%d", localCounter)
			} else {
				key = keys[idx]
			}

			switch localCounter % 3 {
			case 0:
				database.Get(key)
			case 1:
				database.Put(key, fmt.Sprintf("mixed-value-%d", localCounter), 0)
			case 2:
				database.Delete(key)
			}

			localCounter++
		}
	})
}

// benchmarkMixedOperationsWithExpiry tests mixed operations on keys that expire
func benchmarkMixedOperationsWithExpiry(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	numKeys := 50_000
	now := time.Now().Unix()

	// a third of the keys is already expired
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-mixed-key-%d", i)
		database.PutAt(key, fmt.Sprintf("test-mixed-value-%d", i), now+int64(i%3-1)*3600)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			key := fmt.Sprintf("test-mixed-key-%d", counter%numKeys)

			// 70% Get, 30% Put
			if rnd.Float32() < .7 {
				database.Get(key)
			} else {
				value := fmt.Sprintf("test-mixed-updated-value-%d", counter)
				database.Put(key, value, int64(rnd.Intn(1000)))
			}

			counter++
		}
	})
}
