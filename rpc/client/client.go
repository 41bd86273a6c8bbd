package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport"
	"github.com/ValentinKolb/xdb/rpc/transport/base"
)

// ErrClosed is returned for requests on a closed client
var ErrClosed = errors.New("client closed")

// DatabaseInfo describes one database of the server as listed by LISTDBS
type DatabaseInfo struct {
	Index int
	Name  string
}

// Client is a connection to an xDB server.
//
// Requests are serialized, a Client can be shared between goroutines but
// sends one command at a time. After a network error the connection is dropped
// and the next request reconnects and selects the current database again.
type Client struct {
	config    common.ClientConfig
	transport transport.IClientTransport

	mu      sync.Mutex
	conn    net.Conn
	reader  *base.LineReader
	current int // database selected on the server
	closed  bool
}

// NewClient connects to the server configured in config
func NewClient(config common.ClientConfig, transport transport.IClientTransport) (*Client, error) {
	c := &Client{
		config:    config,
		transport: transport,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// connect opens a new connection and restores the selected database.
// The caller must hold mu (or own c exclusively).
func (c *Client) connect() error {
	conn, err := c.transport.Connect(c.config)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = base.NewLineReader(conn, common.MaxLineSize)
	Logger.Debugf("Connected to %s via %s", c.config.Endpoint, c.transport.GetName())

	if c.current != 0 {
		reply, err := c.roundTrip(common.EncodeCommand(common.CmdSelectDB, strconv.Itoa(c.current)))
		if err != nil {
			return err
		}
		if err := reply.Err(); err != nil {
			c.drop()
			return fmt.Errorf("failed to select database %d after reconnect: %w", c.current, err)
		}
	}
	return nil
}

// drop closes the current connection, the next request reconnects
func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.reader = nil
}

// roundTrip writes one request and reads its reply. On a network error the
// connection is dropped. The caller must hold mu.
func (c *Client) roundTrip(request []byte) (Reply, error) {
	if c.config.TimeoutSecond > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(time.Duration(c.config.TimeoutSecond) * time.Second))
	}

	if _, err := c.conn.Write(request); err != nil {
		c.drop()
		return Reply{}, fmt.Errorf("failed to send request: %w", err)
	}

	reply, err := readReply(c.reader)
	if err != nil {
		c.drop()
		return Reply{}, fmt.Errorf("failed to read reply: %w", err)
	}
	return reply, nil
}

// Do sends a command with the given arguments and returns the raw reply.
// An error reply of the server is returned as reply, not as error.
func (c *Client) Do(cmd common.CommandType, args ...string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Reply{}, ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(); err != nil {
			return Reply{}, err
		}
	}
	return c.roundTrip(common.EncodeCommand(cmd, args...))
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Ping checks that the server answers
func (c *Client) Ping() error {
	reply, err := c.Do(common.CmdPing)
	if err != nil {
		return err
	}
	return expectSimple(reply, common.MsgPong)
}

// Set stores value under key in the current database.
// ttlSeconds > 0 lets the key expire after that many seconds.
func (c *Client) Set(key, value string, ttlSeconds int64) error {
	if err := checkToken("key", key); err != nil {
		return err
	}
	if err := checkToken("value", value); err != nil {
		return err
	}

	args := []string{key, value}
	if ttlSeconds != 0 {
		args = append(args, strconv.FormatInt(ttlSeconds, 10))
	}

	reply, err := c.Do(common.CmdSet, args...)
	if err != nil {
		return err
	}
	return expectSimple(reply, common.MsgOK)
}

// Get returns the value of key in the current database
func (c *Client) Get(key string) (string, bool, error) {
	if err := checkToken("key", key); err != nil {
		return "", false, err
	}

	reply, err := c.Do(common.CmdGet, key)
	if err != nil {
		return "", false, err
	}
	if err := reply.Err(); err != nil {
		return "", false, err
	}
	if reply.Type != common.ReplyBulk {
		return "", false, fmt.Errorf("%w: got type %q for GET", ErrUnexpectedReply, reply.Type)
	}
	if reply.Null {
		return "", false, nil
	}
	return reply.Str, true, nil
}

// Delete removes key from the current database and reports whether it existed
func (c *Client) Delete(key string) (bool, error) {
	if err := checkToken("key", key); err != nil {
		return false, err
	}

	reply, err := c.Do(common.CmdDel, key)
	if err != nil {
		return false, err
	}
	if err := reply.Err(); err != nil {
		return false, err
	}
	if reply.Type != common.ReplyInteger {
		return false, fmt.Errorf("%w: got type %q for DEL", ErrUnexpectedReply, reply.Type)
	}
	return reply.Int == 1, nil
}

// SelectDB switches the connection to the database with the given index
// and returns the name of that database
func (c *Client) SelectDB(index int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(); err != nil {
			return "", err
		}
	}

	reply, err := c.roundTrip(common.EncodeCommand(common.CmdSelectDB, strconv.Itoa(index)))
	if err != nil {
		return "", err
	}
	if err := reply.Err(); err != nil {
		return "", err
	}

	// "OK switched to DB <index> (<name>)"
	prefix := fmt.Sprintf("OK switched to DB %d (", index)
	if reply.Type != common.ReplySimple || !strings.HasPrefix(reply.Str, prefix) || !strings.HasSuffix(reply.Str, ")") {
		return "", fmt.Errorf("%w: %q for SELECTDB", ErrUnexpectedReply, reply.Str)
	}

	c.current = index
	return strings.TrimSuffix(strings.TrimPrefix(reply.Str, prefix), ")"), nil
}

// Current returns the index of the selected database
func (c *Client) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ListDBs returns all databases of the server in index order
func (c *Client) ListDBs() ([]DatabaseInfo, error) {
	reply, err := c.Do(common.CmdListDBs)
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	if reply.Type != common.ReplyArray {
		return nil, fmt.Errorf("%w: got type %q for LISTDBS", ErrUnexpectedReply, reply.Type)
	}

	databases := make([]DatabaseInfo, 0, len(reply.Array))
	for _, element := range reply.Array {
		index, name, ok := common.ParseDatabase(element.Str)
		if element.Type != common.ReplyBulk || !ok {
			return nil, fmt.Errorf("%w: bad database entry %q", ErrUnexpectedReply, element.Str)
		}
		databases = append(databases, DatabaseInfo{Index: index, Name: name})
	}
	return databases, nil
}

// Save persists the current database on the server
func (c *Client) Save() error {
	reply, err := c.Do(common.CmdSave)
	if err != nil {
		return err
	}
	return expectSimple(reply, common.MsgOK)
}

// SaveAll persists all databases on the server
func (c *Client) SaveAll() error {
	reply, err := c.Do(common.CmdSaveAll)
	if err != nil {
		return err
	}
	return expectSimple(reply, common.MsgAllSaved)
}

// Close closes the connection. Further requests fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
