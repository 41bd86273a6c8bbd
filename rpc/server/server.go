package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/lib/db/engines/xtable"
	"github.com/ValentinKolb/xdb/lib/store"
	"github.com/ValentinKolb/xdb/lib/store/lstore"
	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrNoDatabases       = errors.New("no databases configured")
	ErrServerRunning     = errors.New("server is running")
	ErrServerStopped     = errors.New("server is stopped")
	ErrDuplicateDatabase = errors.New("database already exists")
	ErrInvalidDatabase   = errors.New("invalid database index")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
)

// CapacityError is returned when a configured limit is reached.
// It matches ErrCapacityExceeded with errors.Is.
type CapacityError struct {
	Resource string
	Limit    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: at most %d %s allowed", ErrCapacityExceeded, e.Limit, e.Resource)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

type serverState uint8

const (
	stateIdle serverState = iota
	stateRunning
	stateStopped
)

// DatabaseInfo identifies one database of the server
type DatabaseInfo struct {
	Index int
	Name  string
	Path  string
}

// Server owns the databases and the accept loop of an xDB node.
// Every accepted connection is served by its own goroutine, a background
// goroutine saves all databases every AutosaveInterval.
type Server struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	adapter   IServerAdapter
	factory   store.DBFactory

	mu        sync.Mutex // guards state, listener and appends to databases
	state     serverState
	listener  net.Listener
	databases []store.IStore
	names     *xsync.MapOf[string, int]

	stopped  atomic.Bool
	clients  *xsync.Counter
	handlers sync.WaitGroup

	ready        chan struct{}
	stopCh       chan struct{}
	autosaveDone chan struct{}

	metrics *serverMetrics
}

// NewServer creates a server without databases.
// Databases are added with AddDatabase before the server is started.
//
// Usage:
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//	if err := s.AddDatabase("main", "./main.xdb"); err != nil {
//		return err
//	}
//	go s.Start()
//	defer s.Destroy()
func NewServer(config common.ServerConfig, transport transport.IServerTransport) *Server {
	numShards := config.NumShards
	s := &Server{
		config:    config,
		transport: transport,
		adapter:   NewIStoreServerAdapter(),
		factory: func() db.KVDB {
			return xtable.NewXTable(&xtable.DBOptions{NumShards: numShards})
		},
		names:        xsync.NewMapOf[string, int](),
		clients:      xsync.NewCounter(),
		ready:        make(chan struct{}),
		stopCh:       make(chan struct{}),
		autosaveDone: make(chan struct{}),
	}
	s.metrics = newServerMetrics(s)
	return s
}

// AddDatabase creates the database name persisted to path and loads it.
// The index of the database is the number of databases added before it.
func (s *Server) AddDatabase(name, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return ErrServerRunning
	case stateStopped:
		return ErrServerStopped
	}

	if _, exists := s.names.Load(name); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDatabase, name)
	}
	if len(s.databases) >= s.config.MaxDatabases {
		return &CapacityError{Resource: "databases", Limit: s.config.MaxDatabases}
	}

	database, err := lstore.NewLocalStore(name, path, s.factory)
	if err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}

	index := len(s.databases)
	s.databases = append(s.databases, database)
	s.names.Store(name, index)

	Logger.Infof("Added database %d (%s) persisted to %s", index, name, path)
	return nil
}

// Start listens on the configured endpoint and accepts connections until Stop is called.
// It returns nil after Stop and an error if the server could not be started.
func (s *Server) Start() error {
	s.mu.Lock()
	switch {
	case s.state == stateRunning:
		s.mu.Unlock()
		return ErrServerRunning
	case s.state == stateStopped:
		s.mu.Unlock()
		return ErrServerStopped
	case len(s.databases) == 0:
		s.mu.Unlock()
		return ErrNoDatabases
	}

	listener, err := s.transport.Listen(s.config)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.state = stateRunning

	if s.config.MetricsEndpoint != "" {
		if err := s.metrics.serve(s.config.MetricsEndpoint); err != nil {
			Logger.Errorf("Failed to start metrics endpoint: %v", err)
		}
	}
	s.mu.Unlock()

	go s.autosave()

	Logger.Infof("xDB server ready on %s (%d databases, max %d clients)", listener.Addr(), len(s.databases), s.config.MaxClients)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.stopped.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener closed unexpectedly: %w", err)
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.ServeConn(conn)
	}
}

// ServeConn serves a connection that was accepted elsewhere.
// It returns false if the connection was rejected because the client limit
// is reached or the server is stopped. A rejected connection is closed.
func (s *Server) ServeConn(conn net.Conn) bool {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}

	if s.clients.Value() >= int64(s.config.MaxClients) {
		s.mu.Unlock()
		s.metrics.rejected.Inc()
		Logger.Warningf("Rejected connection from %s: client limit of %d reached", conn.RemoteAddr(), s.config.MaxClients)
		_ = conn.Close()
		return false
	}

	// registered under mu, so Stop never waits while a handler is added
	s.clients.Inc()
	s.handlers.Add(1)
	s.mu.Unlock()

	s.metrics.accepted.Inc()
	go func() {
		defer s.handlers.Done()
		defer s.clients.Dec()
		s.handle(conn)
	}()
	return true
}

// Stop stops accepting connections and the autosave, waits up to the configured
// grace period for open connections and saves all databases.
// Open connections are closed by their handlers after their current command.
// Calling Stop more than once is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	wasRunning := s.state == stateRunning
	s.state = stateStopped
	s.stopped.Store(true)
	listener := s.listener
	s.mu.Unlock()

	if wasRunning {
		Logger.Infof("Stopping server")
		close(s.stopCh)
		if err := listener.Close(); err != nil {
			Logger.Warningf("Failed to close listener: %v", err)
		}
		<-s.autosaveDone
		s.metrics.shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.config.StopGrace()):
		Logger.Warningf("%d connections still open after %s", s.clients.Value(), s.config.StopGrace())
	}

	if err := s.SaveAll(); err != nil {
		Logger.Errorf("Final save failed: %v", err)
	}
}

// Destroy stops the server and closes all databases.
// Closing a database saves it and releases its memory.
func (s *Server) Destroy() error {
	s.Stop()

	var errs []error
	for _, database := range s.snapshot() {
		if err := database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database %s: %w", database.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// SaveDatabase saves the database with the given index
func (s *Server) SaveDatabase(index int) error {
	database, ok := s.Database(index)
	if !ok {
		return ErrInvalidDatabase
	}
	return s.save(database)
}

// SaveAll saves every database. A failed save does not stop the others.
func (s *Server) SaveAll() error {
	var errs []error
	for _, database := range s.snapshot() {
		if err := s.save(database); err != nil {
			errs = append(errs, fmt.Errorf("database %s: %w", database.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) save(database store.IStore) error {
	start := time.Now()
	err := database.Save()
	s.metrics.saveDuration.UpdateDuration(start)
	if err != nil {
		s.metrics.saveErrors.Inc()
	}
	return err
}

// autosave saves all databases every AutosaveInterval until the server stops
func (s *Server) autosave() {
	defer close(s.autosaveDone)

	ticker := time.NewTicker(s.config.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.SaveAll(); err != nil {
				Logger.Errorf("Autosave failed: %v", err)
			} else {
				Logger.Debugf("Autosave completed")
			}
		}
	}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Addr returns the address the server listens on, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Ready returns a channel that is closed once the server accepts connections
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Clients returns the number of open connections
func (s *Server) Clients() int {
	return int(s.clients.Value())
}

// Database returns the database with the given index
func (s *Server) Database(index int) (store.IStore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.databases) {
		return nil, false
	}
	return s.databases[index], true
}

// DatabaseByName returns the database with the given name and its index
func (s *Server) DatabaseByName(name string) (store.IStore, int, bool) {
	index, ok := s.names.Load(name)
	if !ok {
		return nil, 0, false
	}
	database, ok := s.Database(index)
	return database, index, ok
}

// Databases returns index, name and path of every database in index order
func (s *Server) Databases() []DatabaseInfo {
	databases := s.snapshot()
	infos := make([]DatabaseInfo, len(databases))
	for i, database := range databases {
		infos[i] = DatabaseInfo{Index: i, Name: database.Name(), Path: database.Path()}
	}
	return infos
}

// snapshot returns a copy of the database list
func (s *Server) snapshot() []store.IStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.IStore(nil), s.databases...)
}
