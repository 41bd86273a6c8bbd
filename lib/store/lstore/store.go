package lstore

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/codec"
	"github.com/ValentinKolb/xdb/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	name string
	path string
	db   db.KVDB

	saveMu sync.Mutex // serializes saves, a save owns path + ".tmp"
	closed atomic.Bool

	registry gometrics.Registry
	sets     gometrics.Counter
	hits     gometrics.Counter
	misses   gometrics.Counter
	deletes  gometrics.Counter
	saves    gometrics.Timer
}

// NewLocalStore creates a database called name that is persisted to path.
// The table is created by factory and filled from path if the file exists.
// An unreadable file is logged and results in an empty database.
// An empty path disables persistence.
func NewLocalStore(name, path string, factory store.DBFactory) (store.IStore, error) {
	if name == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "database name must not be empty")
	}

	registry := gometrics.NewRegistry()
	s := &storeImpl{
		name:     name,
		path:     path,
		db:       factory(),
		registry: registry,
		sets:     gometrics.NewRegisteredCounter("sets", registry),
		hits:     gometrics.NewRegisteredCounter("hits", registry),
		misses:   gometrics.NewRegisteredCounter("misses", registry),
		deletes:  gometrics.NewRegisteredCounter("deletes", registry),
		saves:    gometrics.NewRegisteredTimer("saves", registry),
	}

	if path == "" {
		return s, nil
	}

	loaded, err := codec.LoadFile(path, s.db)
	if err != nil {
		Logger.Warningf("database %s: failed to load %s, starting empty: %v", name, path, err)
		_ = s.db.Close()
		s.db = factory()
		return s, nil
	}

	if loaded > 0 {
		Logger.Infof("database %s: loaded %d entries from %s", name, loaded, path)
	}
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Name() string {
	return s.name
}

func (s *storeImpl) Path() string {
	return s.path
}

func (s *storeImpl) Set(key, value string, ttlSeconds int64) error {
	if s.closed.Load() {
		return errClosed()
	}
	if err := s.db.Put(key, value, ttlSeconds); err != nil {
		return toStoreError(err)
	}
	s.sets.Inc(1)
	return nil
}

func (s *storeImpl) Get(key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, errClosed()
	}
	value, ok := s.db.Get(key)
	if ok {
		s.hits.Inc(1)
	} else {
		s.misses.Inc(1)
	}
	return value, ok, nil
}

func (s *storeImpl) Delete(key string) (bool, error) {
	if s.closed.Load() {
		return false, errClosed()
	}
	deleted := s.db.Delete(key)
	if deleted {
		s.deletes.Inc(1)
	}
	return deleted, nil
}

func (s *storeImpl) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.closed.Load() {
		return errClosed()
	}
	return s.save()
}

// save writes the table to disk.
//
// Thread-safety: The caller must hold saveMu.
func (s *storeImpl) save() error {
	if s.path == "" {
		return nil
	}

	var err error
	s.saves.Time(func() {
		err = codec.SaveFile(s.path, s.db)
	})
	if err != nil {
		Logger.Errorf("database %s: failed to save to %s: %v", s.name, s.path, err)
		return store.WrapError(store.RetCIOError, err)
	}

	Logger.Debugf("database %s: saved to %s", s.name, s.path)
	return nil
}

func (s *storeImpl) Close() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.closed.Load() {
		return nil
	}

	saveErr := s.save()
	s.closed.Store(true)

	if err := s.db.Close(); err != nil {
		return store.WrapError(store.RetCInternalError, err)
	}
	return saveErr
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	if s.closed.Load() {
		return db.DatabaseInfo{}, errClosed()
	}

	info := s.db.GetInfo()
	info.Metadata = &struct {
		Name       string                            `json:"name"`
		Path       string                            `json:"path"`
		Operations map[string]map[string]interface{} `json:"operations"`
		Table      interface{}                       `json:"table"`
	}{
		Name:       s.name,
		Path:       s.path,
		Operations: s.registry.GetAll(),
		Table:      info.Metadata,
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func errClosed() error {
	return store.WrapError(store.RetCClosed, db.ErrClosed)
}

// toStoreError maps table errors to store return codes
func toStoreError(err error) error {
	switch {
	case errors.Is(err, db.ErrClosed):
		return store.WrapError(store.RetCClosed, err)
	case errors.Is(err, db.ErrEmptyKey), errors.Is(err, db.ErrKeyTooLarge), errors.Is(err, db.ErrValueTooLarge):
		return store.WrapError(store.RetCInvalidOperation, err)
	default:
		return store.WrapError(store.RetCInternalError, err)
	}
}
