// Package lstore implements a local, in-memory key-value database based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB implementation
// that adds persistence to a single file and per-database operation statistics.
//
// Key Features:
//   - Loading on creation: the file is read with codec.LoadFile. A missing file
//     yields an empty database, an unreadable file is logged and also yields an
//     empty database.
//   - Saving on demand (Save) and on Close: only live entries are written, to
//     "<path>.tmp" first and then renamed over the file.
//   - Operation statistics (sets, hits, misses, deletes and a save timer) kept in a
//     go-metrics registry and reported by GetDBInfo.
//
// Thread Safety:
//
//	All operations are thread-safe. Reads and writes go straight to the table,
//	which provides its own locking. Saves are serialized per store, so an autosave
//	and an explicit SAVE never write the temporary file at the same time.
//
// Usage Example:
//
//	factory := func() db.KVDB { return xtable.NewXTable(nil) }
//	s, err := lstore.NewLocalStore("sessions", "/var/lib/xdb/sessions.xdb", factory)
//	if err != nil {
//		return err
//	}
//	defer s.Close() // saves the database
//
//	// Store a value with 5-minute expiration
//	err = s.Set("session:123", sessionData, 300)
//
//	// Retrieve the value
//	value, exists, err := s.Get("session:123")
package lstore
