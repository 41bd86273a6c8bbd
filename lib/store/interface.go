package store

import (
	"fmt"

	"github.com/ValentinKolb/xdb/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the interface of one named, optionally persisted database.
// All write operations return only an error (a *Error, nil on success),
// while read operations return the requested data along with an error.
type IStore interface {
	// Name returns the name the database was created with.
	Name() string
	// Path returns the file the database is persisted to. An empty path disables persistence.
	Path() string
	// Set inserts or updates a key–value pair. ttlSeconds > 0 lets the entry expire after that many seconds.
	Set(key, value string, ttlSeconds int64) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a live value was found.
	Get(key string) (value string, loaded bool, err error)
	// Delete removes a key–value pair and reports whether the key existed.
	Delete(key string) (deleted bool, err error)
	// Save writes all live entries to Path.
	Save() (err error)
	// Close saves the database and releases its memory. Calling Close more than once is a no-op.
	Close() (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying error, so errors.Is works through a *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error for an underlying error.
func WrapError(code RetCode, err error) *Error {
	return &Error{
		Code: code,
		Msg:  err.Error(),
		Err:  err,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Command executed successfully.
	RetCInternalError                   // 1: Command failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid operation (e.g. key or value too large).
	RetCClosed                          // 3: The store was already closed.
	RetCIOError                         // 4: Reading or writing the database file failed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCClosed:
		return "Closed"
	case RetCIOError:
		return "IOError"
	default:
		return "Unknown"
	}
}
