// Package codec implements the on-disk format of an xDB database.
//
// A database file is a plain concatenation of records without header, footer or
// checksum. Every record is laid out as
//
//	key_len   uint64
//	key       key_len bytes
//	value_len uint64
//	value     value_len bytes
//	expiry    int64 (absolute unix seconds, 0 = never)
//
// Integers use the native byte order of the machine (binary.NativeEndian), so a
// file is only portable between hosts of the same endianness.
//
// Decoding is lenient: it stops without error at the end of the input, at a
// truncated record or at a length field above the limits of the db package.
// Records that are already expired when decoded are skipped.
//
// Files are written to "<path>.tmp" first and renamed over the target, so a crash
// during a save never leaves a half written database behind.
package codec
