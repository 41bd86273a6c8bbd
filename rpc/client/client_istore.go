package client

import (
	"errors"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/store"
	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport"
)

// NewRPCStore creates a store.IStore backed by the database with the given index
// on a remote server. The store owns its own connection.
func NewRPCStore(
	index int,
	config common.ClientConfig,
	transport transport.IClientTransport,
) (store.IStore, error) {

	// Connect the transport
	c, err := NewClient(config, transport)
	if err != nil {
		return nil, err
	}

	// Bind the connection to the database
	name, err := c.SelectDB(index)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return &rpcStore{
		client: c,
		name:   name,
	}, nil
}

type rpcStore struct {
	client *Client
	name   string
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcStore) Name() string {
	return s.name
}

// Path is empty, the file of a remote database is not visible to the client
func (s *rpcStore) Path() string {
	return ""
}

func (s *rpcStore) Set(key, value string, ttlSeconds int64) error {
	return toStoreError(s.client.Set(key, value, ttlSeconds))
}

func (s *rpcStore) Get(key string) (string, bool, error) {
	value, ok, err := s.client.Get(key)
	return value, ok, toStoreError(err)
}

func (s *rpcStore) Delete(key string) (bool, error) {
	existed, err := s.client.Delete(key)
	return existed, toStoreError(err)
}

func (s *rpcStore) Save() error {
	return toStoreError(s.client.Save())
}

// Close closes the connection, the remote database stays open
func (s *rpcStore) Close() error {
	return s.client.Close()
}

// GetDBInfo is not implemented for rpc
func (s *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	return db.DatabaseInfo{}, store.NewError(store.RetCInvalidOperation, "the GetDBInfo() method is not implemented in the rpc store")
}

// toStoreError maps client errors to store errors
func toStoreError(err error) error {
	var serverErr *ServerError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrClosed):
		return store.WrapError(store.RetCClosed, err)
	case errors.Is(err, ErrInvalidArgument):
		return store.WrapError(store.RetCInvalidOperation, err)
	case errors.As(err, &serverErr) && serverErr.Msg == common.MsgSetFailed:
		return store.WrapError(store.RetCInvalidOperation, err)
	case errors.As(err, &serverErr) && serverErr.Msg == common.MsgSaveFailed:
		return store.WrapError(store.RetCIOError, err)
	default:
		return store.WrapError(store.RetCInternalError, err)
	}
}
