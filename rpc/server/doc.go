// Package server implements the xDB server: a set of named databases served
// over the text protocol, one goroutine per connection.
//
// The package focuses on:
//   - Server lifecycle (AddDatabase, Start, Stop, Destroy) with a client limit
//   - Per-connection command handling with a selected database per connection
//   - Periodic persistence of all databases (autosave) and a final save on stop
//   - Metrics in the Prometheus text format, optionally served over HTTP
//
// Key Components:
//
//   - Server: Owns the databases, the accept loop and the autosave goroutine.
//     Databases are indexed in the order they were added; the name index is an
//     xsync.MapOf, the number of live clients an xsync.Counter.
//
//   - handle / session: The connection handler. It reads one line at a time,
//     executes it and writes the reply before reading the next line. The selected
//     database starts at index 0 and only changes on a successful SELECTDB.
//
//   - IServerAdapter: Executes the per-database commands (SET, GET, DEL) against a
//     store.IStore. NewIStoreServerAdapter returns the default adapter.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Endpoint = "127.0.0.1:6379"
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//	_ = s.AddDatabase("main", "./data/main.xdb")
//	_ = s.AddDatabase("cache", "./data/cache.xdb")
//
//	go func() {
//		if err := s.Start(); err != nil {
//			log.Fatalf("Server error: %v", err)
//		}
//	}()
//	<-s.Ready()
//
//	// on shutdown, saves and releases all databases
//	defer s.Destroy()
//
// Protocol:
//
//	SET key value [ttl]  -> +OK
//	GET key              -> $<len> + value, or $-1
//	DEL key              -> :1 or :0
//	SELECTDB index       -> +OK switched to DB <index> (<name>)
//	LISTDBS              -> *<n> followed by one "$<len>" + "<index>:<name>" per database
//	SAVE                 -> +OK
//	SAVEALL              -> +OK all databases saved
//	PING                 -> +PONG
//
// Errors are replied as "-ERR <message>" and never close the connection.
package server
