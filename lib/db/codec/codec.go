package codec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("codec")

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrTruncated is returned by ReadRecord if the input ends inside a record
	ErrTruncated = errors.New("truncated record")
	// ErrCorrupt is returned by ReadRecord if a length field exceeds the size limits
	ErrCorrupt = errors.New("corrupt record")
)

// byteOrder of all integers in a database file
var byteOrder = binary.NativeEndian

// --------------------------------------------------------------------------
// Single records
// --------------------------------------------------------------------------

// WriteRecord appends one record to w
func WriteRecord(w io.Writer, entry db.Entry) error {
	var num [8]byte

	byteOrder.PutUint64(num[:], uint64(len(entry.Key)))
	if _, err := w.Write(num[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, entry.Key); err != nil {
		return err
	}

	byteOrder.PutUint64(num[:], uint64(len(entry.Value)))
	if _, err := w.Write(num[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, entry.Value); err != nil {
		return err
	}

	byteOrder.PutUint64(num[:], uint64(entry.ExpireAt))
	_, err := w.Write(num[:])
	return err
}

// ReadRecord reads the next record from r.
// It returns io.EOF if r is exhausted before the first byte of a record,
// ErrTruncated if r ends inside a record and ErrCorrupt on oversized length fields.
func ReadRecord(r io.Reader) (db.Entry, error) {
	var num [8]byte

	if _, err := io.ReadFull(r, num[:]); err != nil {
		if err == io.EOF {
			return db.Entry{}, io.EOF
		}
		return db.Entry{}, truncated(err)
	}
	keyLen := byteOrder.Uint64(num[:])
	if keyLen > db.MaxKeySize {
		return db.Entry{}, ErrCorrupt
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return db.Entry{}, truncated(err)
	}

	if _, err := io.ReadFull(r, num[:]); err != nil {
		return db.Entry{}, truncated(err)
	}
	valueLen := byteOrder.Uint64(num[:])
	if valueLen > db.MaxValueSize {
		return db.Entry{}, ErrCorrupt
	}

	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return db.Entry{}, truncated(err)
	}

	if _, err := io.ReadFull(r, num[:]); err != nil {
		return db.Entry{}, truncated(err)
	}

	return db.Entry{
		Key:      string(key),
		Value:    string(value),
		ExpireAt: int64(byteOrder.Uint64(num[:])),
	}, nil
}

// truncated maps the short read errors of io.ReadFull to ErrTruncated
func truncated(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrTruncated
	}
	return err
}

// --------------------------------------------------------------------------
// Whole databases
// --------------------------------------------------------------------------

// Encode writes every live entry of database to w
func Encode(w io.Writer, database db.KVDB) error {
	bw := bufio.NewWriter(w)

	var err error
	database.ForEachLive(func(entry db.Entry) bool {
		err = WriteRecord(bw, entry)
		return err == nil
	})
	if err != nil {
		return err
	}

	return bw.Flush()
}

// Decode inserts all records of r into database, keeping their absolute expiry.
// Records already expired by the database clock are skipped. Decoding ends silently at the end of r, at a truncated record or at a corrupt
// length field. Only read errors of r itself and insert errors are returned.
func Decode(r io.Reader, database db.KVDB) error {
	_, err := DecodeAt(r, database, database.Now())
	return err
}

// DecodeAt is Decode with an explicit point in time for the expiry check.
// It returns the number of inserted records.
func DecodeAt(r io.Reader, database db.KVDB, now time.Time) (int, error) {
	br := bufio.NewReader(r)
	loaded := 0

	for {
		entry, err := ReadRecord(br)
		switch {
		case err == io.EOF:
			return loaded, nil
		case errors.Is(err, ErrTruncated), errors.Is(err, ErrCorrupt):
			Logger.Warningf("load stopped after %d records: %v", loaded, err)
			return loaded, nil
		case err != nil:
			return loaded, err
		}

		if entry.Expired(now) {
			continue
		}

		if err := database.PutAt(entry.Key, entry.Value, entry.ExpireAt); err != nil {
			// an empty key is the only record a valid length field can not describe
			if errors.Is(err, db.ErrEmptyKey) {
				continue
			}
			return loaded, fmt.Errorf("failed to restore key %q: %w", entry.Key, err)
		}
		loaded++
	}
}

// --------------------------------------------------------------------------
// Files
// --------------------------------------------------------------------------

// SaveFile writes database to path.
// The data is written to path + ".tmp" and renamed over path once complete.
// Missing parent directories are created.
func SaveFile(path string, database db.KVDB) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	if err := Encode(f, database); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}

	return nil
}

// LoadFile inserts all records stored at path into database and returns their number.
// A missing file is not an error, the database simply stays empty.
func LoadFile(path string, database db.KVDB) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	return DecodeAt(f, database, database.Now())
}
