package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(line string) {
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

func (c *testClient) readLine() string {
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	require.True(c.t, strings.HasSuffix(line, "\r\n"), "reply %q must end in CRLF", line)
	return strings.TrimSuffix(line, "\r\n")
}

func (c *testClient) do(line string) string {
	c.send(line)
	return c.readLine()
}

// get sends GET and returns the value, or "<nil>" for a missing key
func (c *testClient) get(key string) string {
	header := c.do("GET " + key)
	if header == "$-1" {
		return "<nil>"
	}
	require.True(c.t, strings.HasPrefix(header, "$"), "unexpected reply %q", header)
	return c.readLine()
}

func testConfig() common.ServerConfig {
	config := common.DefaultServerConfig()
	config.Endpoint = "127.0.0.1:0"
	config.NumShards = 64
	config.StopGraceMillisecond = 200
	return config
}

// newTestServer creates a server with one database per name, persisted to dir
func newTestServer(t *testing.T, config common.ServerConfig, dir string, names ...string) *Server {
	s := NewServer(config, tcp.NewTCPServerTransport())
	for _, name := range names {
		require.NoError(t, s.AddDatabase(name, filepath.Join(dir, name+".xdb")))
	}
	return s
}

// pipeClient connects a client to s through an in-memory pipe
func pipeClient(t *testing.T, s *Server) *testClient {
	clientSide, serverSide := net.Pipe()
	require.True(t, s.ServeConn(serverSide))
	return newTestClient(t, clientSide)
}

// startServer runs s in the background and returns a dialer for it
func startServer(t *testing.T, s *Server) func() *testClient {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case <-s.Ready():
	case err := <-errCh:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	t.Cleanup(func() {
		_ = s.Destroy()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Start did not return after Stop")
		}
	})

	return func() *testClient {
		conn, err := net.Dial("tcp", s.Addr().String())
		require.NoError(t, err)
		return newTestClient(t, conn)
	}
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func TestSetGetDel(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	defer s.Destroy()
	c := pipeClient(t, s)

	assert.Equal(t, "+OK", c.do("SET foo bar"))
	assert.Equal(t, "bar", c.get("foo"))

	assert.Equal(t, "+OK", c.do("SET foo baz"))
	assert.Equal(t, "baz", c.get("foo"))

	assert.Equal(t, ":1", c.do("DEL foo"))
	assert.Equal(t, ":0", c.do("DEL foo"))
	assert.Equal(t, "<nil>", c.get("foo"))
	assert.Equal(t, ":0", c.do("DEL never-set"))
}

func TestSyntaxErrors(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	defer s.Destroy()
	c := pipeClient(t, s)

	assert.Equal(t, "-ERR invalid syntax", c.do("SET onlykey"))
	assert.Equal(t, "-ERR invalid syntax", c.do("SET"))
	assert.Equal(t, "-ERR invalid syntax", c.do("SET k v notanumber"))
	assert.Equal(t, "-ERR invalid syntax", c.do("GET"))
	assert.Equal(t, "-ERR invalid syntax", c.do("DEL"))
	assert.Equal(t, "-ERR invalid syntax", c.do("SELECTDB"))
	assert.Equal(t, "-ERR unknown command", c.do("FLUSHALL"))
	assert.Equal(t, "-ERR unknown command", c.do("get foo"))

	// extra arguments are ignored
	assert.Equal(t, "+OK", c.do("SET k v 0 extra"))
	assert.Equal(t, "v", c.get("k"))
	assert.Equal(t, "v", c.get("k ignored"))
}

func TestSizeLimits(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	defer s.Destroy()
	c := pipeClient(t, s)

	maxKey := strings.Repeat("k", db.MaxKeySize)
	maxValue := strings.Repeat("v", db.MaxValueSize)

	assert.Equal(t, "+OK", c.do("SET "+maxKey+" small"))
	assert.Equal(t, "small", c.get(maxKey))
	assert.Equal(t, "+OK", c.do("SET big "+maxValue+" 3600"))
	assert.Equal(t, maxValue, c.get("big"))

	// the largest entry fits on one line, with and without ttl
	assert.Equal(t, "+OK", c.do("SET "+maxKey+" "+maxValue))
	assert.Equal(t, maxValue, c.get(maxKey))
	assert.Equal(t, "+OK", c.do("SET "+maxKey+" "+maxValue+" 3600"))
	assert.Equal(t, maxValue, c.get(maxKey))

	assert.Equal(t, "-ERR failed to set key", c.do("SET "+maxKey+"k value"))
	assert.Equal(t, "-ERR failed to set key", c.do("SET key "+maxValue+"v"))
	assert.Equal(t, "<nil>", c.get("key"))

	// a line above the protocol limit is rejected as a whole
	assert.Equal(t, "-ERR command too long", c.do("SET key "+strings.Repeat("x", common.MaxLineSize)))
	assert.Equal(t, "+PONG", c.do("PING"))
}

func TestTTL(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	defer s.Destroy()
	c := pipeClient(t, s)

	assert.Equal(t, "+OK", c.do("SET short v 1"))
	assert.Equal(t, "+OK", c.do("SET long v 100"))
	assert.Equal(t, "+OK", c.do("SET negative v -1"))
	assert.Equal(t, "v", c.get("short"))

	time.Sleep(1100 * time.Millisecond)

	assert.Equal(t, "<nil>", c.get("short"))
	assert.Equal(t, "v", c.get("long"))
	assert.Equal(t, "v", c.get("negative"))
}

func TestPingAndBlankLines(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	defer s.Destroy()
	c := pipeClient(t, s)

	// blank lines get no reply, the first reply belongs to PING
	c.send("")
	c.send("   ")
	assert.Equal(t, "+PONG", c.do("PING"))
}

func TestSelectDB(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main", "cache")
	defer s.Destroy()
	c := pipeClient(t, s)

	assert.Equal(t, "+OK", c.do("SET x 1"))
	assert.Equal(t, "+OK switched to DB 1 (cache)", c.do("SELECTDB 1"))
	assert.Equal(t, "<nil>", c.get("x"))
	assert.Equal(t, "+OK", c.do("SET x 2"))

	assert.Equal(t, "-ERR invalid database index", c.do("SELECTDB 99"))
	assert.Equal(t, "-ERR invalid database index", c.do("SELECTDB -1"))
	assert.Equal(t, "-ERR invalid database index", c.do("SELECTDB one"))

	// failed selections keep the current database
	assert.Equal(t, "2", c.get("x"))

	assert.Equal(t, "+OK switched to DB 0 (main)", c.do("SELECTDB 0"))
	assert.Equal(t, "1", c.get("x"))

	// every connection starts at database 0
	other := pipeClient(t, s)
	assert.Equal(t, "1", other.get("x"))
}

func TestListDBs(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(), dir, "main", "cache")
	defer s.Destroy()
	c := pipeClient(t, s)

	assert.Equal(t, "*2", c.do("LISTDBS"))
	assert.Equal(t, "$6", c.readLine())
	assert.Equal(t, "0:main", c.readLine())
	assert.Equal(t, "$7", c.readLine())
	assert.Equal(t, "1:cache", c.readLine())

	assert.Equal(t, []DatabaseInfo{
		{Index: 0, Name: "main", Path: filepath.Join(dir, "main.xdb")},
		{Index: 1, Name: "cache", Path: filepath.Join(dir, "cache.xdb")},
	}, s.Databases())
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(), dir, "main", "cache")
	c := pipeClient(t, s)

	assert.Equal(t, "+OK", c.do("SET a 1"))
	assert.Equal(t, "+OK", c.do("SET b 2 3600"))
	assert.Equal(t, "+OK", c.do("SAVE"))
	assert.FileExists(t, filepath.Join(dir, "main.xdb"))

	assert.Equal(t, "+OK switched to DB 1 (cache)", c.do("SELECTDB 1"))
	assert.Equal(t, "+OK", c.do("SET c 3"))
	assert.Equal(t, "+OK all databases saved", c.do("SAVEALL"))
	assert.FileExists(t, filepath.Join(dir, "cache.xdb"))

	require.NoError(t, s.Destroy())

	// a new server loads the saved state
	reloaded := newTestServer(t, testConfig(), dir, "main", "cache")
	defer reloaded.Destroy()
	c = pipeClient(t, reloaded)

	assert.Equal(t, "1", c.get("a"))
	assert.Equal(t, "2", c.get("b"))
	assert.Equal(t, "<nil>", c.get("c"))
	assert.Equal(t, "+OK switched to DB 1 (cache)", c.do("SELECTDB 1"))
	assert.Equal(t, "3", c.get("c"))
}

func TestSaveFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(testConfig(), tcp.NewTCPServerTransport())
	defer s.Destroy()

	// the target path is a directory, the final rename fails
	require.NoError(t, s.AddDatabase("broken", t.TempDir()))
	require.NoError(t, s.AddDatabase("fine", filepath.Join(dir, "fine.xdb")))
	c := pipeClient(t, s)

	assert.Equal(t, "+OK", c.do("SET k v"))
	assert.Equal(t, "-ERR failed to save database", c.do("SAVE"))
	assert.Equal(t, "-ERR failed to save databases", c.do("SAVEALL"))

	// the other database is still saved
	assert.FileExists(t, filepath.Join(dir, "fine.xdb"))

	assert.Equal(t, "+OK switched to DB 1 (fine)", c.do("SELECTDB 1"))
	assert.Equal(t, "+OK", c.do("SAVE"))
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestAddDatabase(t *testing.T) {
	config := testConfig()
	config.MaxDatabases = 2
	dir := t.TempDir()

	s := NewServer(config, tcp.NewTCPServerTransport())

	assert.ErrorIs(t, s.Start(), ErrNoDatabases)

	require.NoError(t, s.AddDatabase("main", filepath.Join(dir, "main.xdb")))
	assert.ErrorIs(t, s.AddDatabase("main", filepath.Join(dir, "other.xdb")), ErrDuplicateDatabase)
	require.NoError(t, s.AddDatabase("cache", filepath.Join(dir, "cache.xdb")))

	err := s.AddDatabase("third", filepath.Join(dir, "third.xdb"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	var capacityErr *CapacityError
	require.True(t, errors.As(err, &capacityErr))
	assert.Equal(t, 2, capacityErr.Limit)

	database, index, ok := s.DatabaseByName("cache")
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, "cache", database.Name())

	_, _, ok = s.DatabaseByName("missing")
	assert.False(t, ok)

	startServer(t, s)
	assert.ErrorIs(t, s.AddDatabase("late", filepath.Join(dir, "late.xdb")), ErrServerRunning)
	assert.ErrorIs(t, s.Start(), ErrServerRunning)
}

func TestServerOverTCP(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	dial := startServer(t, s)

	require.NotNil(t, s.Addr())
	c := dial()
	assert.Equal(t, "+PONG", c.do("PING"))
	assert.Equal(t, "+OK", c.do("SET over tcp"))
	assert.Equal(t, "tcp", c.get("over"))
}

func TestMaxClients(t *testing.T) {
	config := testConfig()
	config.MaxClients = 1
	s := newTestServer(t, config, t.TempDir(), "main")
	dial := startServer(t, s)

	first := dial()
	assert.Equal(t, "+PONG", first.do("PING"))
	assert.Equal(t, 1, s.Clients())

	// the second connection is closed without a reply
	second := dial()
	_ = second.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := second.r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)

	// after the first client leaves, a new one is accepted
	first.conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)

	third := dial()
	assert.Equal(t, "+PONG", third.do("PING"))

	var buf bytes.Buffer
	s.WriteMetrics(&buf)
	assert.Contains(t, buf.String(), "xdb_connections_rejected_total 1")
}

func TestConcurrentClients(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	dial := startServer(t, s)

	numClients := 8
	keysPerClient := 100

	clients := make([]*testClient, numClients)
	for i := range clients {
		clients[i] = dial()
	}

	var wg sync.WaitGroup
	errs := make(chan string, numClients*keysPerClient)
	for i, c := range clients {
		wg.Add(1)
		go func(id int, c *testClient) {
			defer wg.Done()
			for j := 0; j < keysPerClient; j++ {
				_, _ = c.conn.Write([]byte(fmt.Sprintf("SET key_%d_%d value_%d_%d\r\n", id, j, id, j)))
				line, err := c.r.ReadString('\n')
				if err != nil || line != "+OK\r\n" {
					errs <- fmt.Sprintf("client %d key %d: %q %v", id, j, line, err)
				}
			}
		}(i, c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	c := dial()
	for i := 0; i < numClients; i++ {
		for j := 0; j < keysPerClient; j++ {
			assert.Equal(t, fmt.Sprintf("value_%d_%d", i, j), c.get(fmt.Sprintf("key_%d_%d", i, j)))
		}
	}
}

func TestConcurrentSameKey(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	dial := startServer(t, s)

	values := map[string]bool{
		strings.Repeat("a", 1000): true,
		strings.Repeat("b", 2000): true,
	}

	var wg sync.WaitGroup
	torn := make(chan string, 1000)
	for value := range values {
		c := dial()
		wg.Add(1)
		go func(c *testClient, value string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = c.conn.Write([]byte("SET hot " + value + "\r\n"))
				_, _ = c.r.ReadString('\n')
			}
		}(c, value)
	}

	reader := dial()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = reader.conn.Write([]byte("GET hot\r\n"))
			header, _ := reader.r.ReadString('\n')
			if header == "$-1\r\n" {
				continue
			}
			value, _ := reader.r.ReadString('\n')
			if !values[strings.TrimSuffix(value, "\r\n")] {
				torn <- value
			}
		}
	}()

	wg.Wait()
	close(torn)
	assert.Empty(t, torn)
}

func TestStopSavesAndClosesConnections(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(), dir, "main")

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	<-s.Ready()

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	c := newTestClient(t, conn)
	assert.Equal(t, "+OK", c.do("SET kept 1"))

	s.Stop()
	require.NoError(t, <-errCh)
	s.Stop() // no-op

	assert.FileExists(t, filepath.Join(dir, "main.xdb"))

	// the handler closes the connection after the next command
	assert.Equal(t, "+PONG", c.do("PING"))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = c.r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)

	// a stopped server accepts nothing
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	assert.False(t, s.ServeConn(serverSide))
	assert.ErrorIs(t, s.Start(), ErrServerStopped)

	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy())
}

func TestAutosave(t *testing.T) {
	dir := t.TempDir()
	config := testConfig()
	config.AutosaveInterval = 50 * time.Millisecond
	s := newTestServer(t, config, dir, "main")
	dial := startServer(t, s)

	c := dial()
	assert.Equal(t, "+OK", c.do("SET auto saved"))

	require.Eventually(t, func() bool {
		return fileExists(filepath.Join(dir, "main.xdb"))
	}, 5*time.Second, 20*time.Millisecond)
}

func TestIdleTimeout(t *testing.T) {
	config := testConfig()
	config.TimeoutSecond = 1
	s := newTestServer(t, config, t.TempDir(), "main")
	dial := startServer(t, s)

	c := dial()
	assert.Equal(t, "+PONG", c.do("PING"))

	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := c.r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, testConfig(), t.TempDir(), "main")
	defer s.Destroy()
	c := pipeClient(t, s)

	assert.Equal(t, "+PONG", c.do("PING"))
	assert.Equal(t, "+PONG", c.do("PING"))
	assert.Equal(t, "-ERR unknown command", c.do("NOPE"))

	var buf bytes.Buffer
	s.WriteMetrics(&buf)
	out := buf.String()
	assert.Contains(t, out, `xdb_commands_total{command="PING"} 2`)
	assert.Contains(t, out, `xdb_commands_total{command="UNKNOWN"} 1`)
	assert.Contains(t, out, "xdb_command_errors_total 1")
	assert.Contains(t, out, "xdb_databases 1")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
