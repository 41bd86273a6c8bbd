package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/engines/xtable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(now time.Time) db.KVDB {
	return xtable.NewXTable(&xtable.DBOptions{
		NumShards: 16,
		Clock:     func() time.Time { return now },
	})
}

func TestRecordLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "ab", Value: "xyz", ExpireAt: 42}))

	raw := buf.Bytes()
	require.Len(t, raw, 8+2+8+3+8)

	assert.Equal(t, uint64(2), binary.NativeEndian.Uint64(raw[0:8]))
	assert.Equal(t, "ab", string(raw[8:10]))
	assert.Equal(t, uint64(3), binary.NativeEndian.Uint64(raw[10:18]))
	assert.Equal(t, "xyz", string(raw[18:21]))
	assert.Equal(t, int64(42), int64(binary.NativeEndian.Uint64(raw[21:29])))

	entry, err := ReadRecord(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, db.Entry{Key: "ab", Value: "xyz", ExpireAt: 42}, entry)
}

func TestReadRecordErrors(t *testing.T) {
	_, err := ReadRecord(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "key", Value: "value"}))
	raw := buf.Bytes()

	for _, cut := range []int{4, 8, 10, 16, len(raw) - 1} {
		_, err := ReadRecord(bytes.NewReader(raw[:cut]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}

	var corrupt [8]byte
	binary.NativeEndian.PutUint64(corrupt[:], db.MaxKeySize+1)
	_, err = ReadRecord(bytes.NewReader(corrupt[:]))
	assert.ErrorIs(t, err, ErrCorrupt)

	buf.Reset()
	binary.NativeEndian.PutUint64(corrupt[:], 1)
	buf.Write(corrupt[:])
	buf.WriteString("k")
	binary.NativeEndian.PutUint64(corrupt[:], db.MaxValueSize+1)
	buf.Write(corrupt[:])
	_, err = ReadRecord(&buf)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEncodeDecode(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	src := newTable(now)
	defer src.Close()

	require.NoError(t, src.Put("a", "1", 0))
	require.NoError(t, src.Put("b", "2", 3600))
	require.NoError(t, src.Put("empty", "", 0))
	require.NoError(t, src.Put(strings.Repeat("k", db.MaxKeySize), strings.Repeat("v", db.MaxValueSize), 0))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, src))

	dst := newTable(now)
	defer dst.Close()

	loaded, err := DecodeAt(&buf, dst, now)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded)

	value, ok := dst.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", value)

	var expireAt int64
	dst.ForEachLive(func(entry db.Entry) bool {
		if entry.Key == "b" {
			expireAt = entry.ExpireAt
		}
		return true
	})
	assert.Equal(t, now.Unix()+3600, expireAt)

	value, ok = dst.Get("empty")
	assert.True(t, ok)
	assert.Equal(t, "", value)
}

func TestDecodeSkipsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "past", Value: "v", ExpireAt: now.Unix() - 10}))
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "boundary", Value: "v", ExpireAt: now.Unix()}))
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "future", Value: "v", ExpireAt: now.Unix() + 10}))

	dst := newTable(now)
	defer dst.Close()

	loaded, err := DecodeAt(&buf, dst, now)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 1, dst.Len())

	_, ok := dst.Get("future")
	assert.True(t, ok)
}

func TestLoadUsesDatabaseClock(t *testing.T) {
	// long in the past, so the wall clock would drop every record
	now := time.Unix(1_000_000_000, 0)

	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "expired", Value: "v", ExpireAt: now.Unix() - 1}))
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "live", Value: "v", ExpireAt: now.Unix() + 60}))
	data := buf.Bytes()

	dst := newTable(now)
	defer dst.Close()
	assert.Equal(t, now, dst.Now())

	require.NoError(t, Decode(bytes.NewReader(data), dst))
	assert.Equal(t, 1, dst.Len())
	_, ok := dst.Get("live")
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "clock.xdb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	dst2 := newTable(now)
	defer dst2.Close()

	loaded, err := LoadFile(path, dst2)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	_, ok = dst2.Get("expired")
	assert.False(t, ok)
	_, ok = dst2.Get("live")
	assert.True(t, ok)
}

func TestDecodeStopsAtGarbage(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "first", Value: "v"}))
	require.NoError(t, WriteRecord(&buf, db.Entry{Key: "second", Value: "v"}))
	buf.Write([]byte{1, 2, 3})

	dst := newTable(now)
	defer dst.Close()

	loaded, err := DecodeAt(&buf, dst, now)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	var corrupt bytes.Buffer
	require.NoError(t, WriteRecord(&corrupt, db.Entry{Key: "only", Value: "v"}))
	var huge [8]byte
	binary.NativeEndian.PutUint64(huge[:], 1<<40)
	corrupt.Write(huge[:])
	require.NoError(t, WriteRecord(&corrupt, db.Entry{Key: "unreachable", Value: "v"}))

	dst2 := newTable(now)
	defer dst2.Close()

	loaded, err = DecodeAt(&corrupt, dst2, now)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	_, ok := dst2.Get("unreachable")
	assert.False(t, ok)
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "data.xdb")

	src := xtable.NewXTable(nil)
	defer src.Close()
	require.NoError(t, src.Put("a", "1", 0))
	require.NoError(t, src.Put("b", "2", 3600))

	require.NoError(t, SaveFile(path, src))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must be renamed")

	dst := xtable.NewXTable(nil)
	defer dst.Close()

	loaded, err := LoadFile(path, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	value, ok := dst.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", value)

	// saving again replaces the file
	require.True(t, src.Delete("a"))
	require.NoError(t, SaveFile(path, src))

	dst2 := xtable.NewXTable(nil)
	defer dst2.Close()
	loaded, err = LoadFile(path, dst2)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	dst := xtable.NewXTable(nil)
	defer dst.Close()

	loaded, err := LoadFile(filepath.Join(t.TempDir(), "missing.xdb"), dst)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)
	assert.Equal(t, 0, dst.Len())
}

func TestSaveEmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xdb")

	src := xtable.NewXTable(nil)
	defer src.Close()
	require.NoError(t, SaveFile(path, src))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stat.Size())
}
