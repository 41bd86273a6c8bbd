package xtable

import (
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	dbtesting "github.com/ValentinKolb/xdb/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "XTable", func(clock func() time.Time) db.KVDB {
		return NewXTable(&DBOptions{Clock: clock})
	})
}

func TestFewShards(t *testing.T) {
	// few shards force long shard slices and many in-shard removals
	dbtesting.RunKVDBTests(t, "XTable(4 shards)", func(clock func() time.Time) db.KVDB {
		return NewXTable(&DBOptions{NumShards: 4, Clock: clock})
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "XTable", func(clock func() time.Time) db.KVDB {
		return NewXTable(&DBOptions{Clock: clock})
	})
}
