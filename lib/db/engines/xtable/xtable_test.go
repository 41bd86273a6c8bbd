package xtable

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	dbtesting "github.com/ValentinKolb/xdb/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(table db.KVDB) []db.Entry {
	var out []db.Entry
	table.ForEachLive(func(entry db.Entry) bool {
		out = append(out, entry)
		return true
	})
	return out
}

func TestIterationOrderWithinShard(t *testing.T) {
	table := NewXTable(&DBOptions{NumShards: 1})
	defer table.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, table.Put(fmt.Sprintf("k%d", i), "v", 0))
	}
	require.True(t, table.Delete("k1"))
	require.NoError(t, table.Put("k3", "updated", 0))

	entries := collect(table)
	require.Len(t, entries, 4)
	assert.Equal(t, "k0", entries[0].Key)
	assert.Equal(t, "k2", entries[1].Key)
	assert.Equal(t, "k3", entries[2].Key)
	assert.Equal(t, "updated", entries[2].Value)
	assert.Equal(t, "k4", entries[3].Key)
}

func TestForEachLiveStops(t *testing.T) {
	table := NewXTable(nil)
	defer table.Close()

	for i := 0; i < 100; i++ {
		require.NoError(t, table.Put(fmt.Sprintf("k%d", i), "v", 0))
	}

	visited := 0
	table.ForEachLive(func(db.Entry) bool {
		visited++
		return visited < 10
	})
	assert.Equal(t, 10, visited)
}

func TestForEachLiveSkipsExpiredWithoutRemoving(t *testing.T) {
	clock := dbtesting.NewFakeClock()
	table := NewXTable(&DBOptions{NumShards: 8, Clock: clock.Now})
	defer table.Close()

	require.NoError(t, table.Put("short", "v", 1))
	require.NoError(t, table.Put("long", "v", 100))
	clock.Advance(time.Second)

	entries := collect(table)
	require.Len(t, entries, 1)
	assert.Equal(t, "long", entries[0].Key)
	assert.Equal(t, clock.Now().Unix()+99, entries[0].ExpireAt)

	// the expired entry is still stored until it is read
	assert.Equal(t, 2, table.Len())
	info := table.GetInfo()
	assert.Equal(t, 2, info.Entries)

	_, ok := table.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestPutAtInThePast(t *testing.T) {
	clock := dbtesting.NewFakeClock()
	table := NewXTable(&DBOptions{Clock: clock.Now})
	defer table.Close()

	require.NoError(t, table.PutAt("old", "v", clock.Now().Unix()-1))
	_, ok := table.Get("old")
	assert.False(t, ok)
}

func TestGetInfo(t *testing.T) {
	table := NewXTable(&DBOptions{NumShards: 16})
	defer table.Close()

	for i := 0; i < 160; i++ {
		require.NoError(t, table.Put(fmt.Sprintf("key-%d", i), "value", 0))
	}

	info := table.GetInfo()
	assert.Equal(t, db.ImplXTable, info.DbType)
	assert.Equal(t, 160, info.Entries)
	assert.Greater(t, info.SizeBytes, 0)
	assert.NotNil(t, info.Metadata)
}

func TestCloseIsIdempotent(t *testing.T) {
	table := NewXTable(nil)
	require.NoError(t, table.Put("k", "v", 0))

	require.NoError(t, table.Close())
	require.NoError(t, table.Close())

	assert.ErrorIs(t, table.Put("k", "v", 0), db.ErrClosed)
	_, ok := table.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, DefaultNumShards, opts.NumShards)
	assert.NotNil(t, opts.Clock)

	table := NewXTable(&DBOptions{NumShards: -3}).(*xtableImpl)
	defer table.Close()
	assert.Len(t, table.shards, DefaultNumShards)
}
