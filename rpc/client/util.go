package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ValentinKolb/xdb/rpc/common"
	"github.com/ValentinKolb/xdb/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// maxBulkSize bounds the payload of a bulk reply. Values are far smaller,
// a larger length means the stream is out of sync.
const maxBulkSize = 1 << 20

var (
	// ErrUnexpectedReply is returned for a reply that does not fit the request or is malformed
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrInvalidArgument is returned for an argument that cannot be sent as a single token
	ErrInvalidArgument = errors.New("invalid argument")
)

// ServerError is an error reply ("-ERR <msg>") of the server
type ServerError struct {
	Msg string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Msg
}

// Reply is one decoded reply of the server
type Reply struct {
	Type  byte    // one of the common.Reply* markers
	Str   string  // text of a simple or error reply, payload of a bulk reply
	Int   int64   // value of an integer reply
	Null  bool    // true for the null bulk reply ("$-1")
	Array []Reply // elements of an array reply
}

// Err returns the reply as error if it is an error reply
func (r Reply) Err() error {
	if r.Type == common.ReplyError {
		return &ServerError{Msg: r.Str}
	}
	return nil
}

// readReply reads one complete reply, including all elements of an array
func readReply(r *base.LineReader) (Reply, error) {
	line, err := r.ReadLine()
	if err != nil {
		return Reply{}, err
	}
	if len(line) == 0 {
		return Reply{}, fmt.Errorf("%w: empty line", ErrUnexpectedReply)
	}

	reply := Reply{Type: line[0]}
	payload := line[1:]

	switch reply.Type {
	case common.ReplySimple:
		reply.Str = payload

	case common.ReplyError:
		reply.Str = strings.TrimPrefix(payload, common.ErrPrefix)

	case common.ReplyInteger:
		if reply.Int, err = strconv.ParseInt(payload, 10, 64); err != nil {
			return Reply{}, fmt.Errorf("%w: bad integer %q", ErrUnexpectedReply, payload)
		}

	case common.ReplyBulk:
		n, err := strconv.Atoi(payload)
		if err != nil || n < -1 || n > maxBulkSize {
			return Reply{}, fmt.Errorf("%w: bad bulk length %q", ErrUnexpectedReply, payload)
		}
		if n == -1 {
			reply.Null = true
			break
		}
		data, err := r.ReadFull(n + 2)
		if err != nil {
			return Reply{}, err
		}
		if data[n] != '\r' || data[n+1] != '\n' {
			return Reply{}, fmt.Errorf("%w: bulk payload not terminated", ErrUnexpectedReply)
		}
		reply.Str = string(data[:n])

	case common.ReplyArray:
		n, err := strconv.Atoi(payload)
		if err != nil || n < 0 || n > maxBulkSize {
			return Reply{}, fmt.Errorf("%w: bad array length %q", ErrUnexpectedReply, payload)
		}
		reply.Array = make([]Reply, 0, n)
		for i := 0; i < n; i++ {
			element, err := readReply(r)
			if err != nil {
				return Reply{}, err
			}
			reply.Array = append(reply.Array, element)
		}

	default:
		return Reply{}, fmt.Errorf("%w: unknown reply type %q", ErrUnexpectedReply, reply.Type)
	}

	return reply, nil
}

// checkToken validates an argument that is sent as one whitespace separated token
func checkToken(name, arg string) error {
	if arg == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidArgument, name)
	}
	if strings.IndexFunc(arg, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %s must not contain whitespace", ErrInvalidArgument, name)
	}
	return nil
}

// expectSimple checks for the simple reply want
func expectSimple(reply Reply, want string) error {
	if err := reply.Err(); err != nil {
		return err
	}
	if reply.Type != common.ReplySimple || reply.Str != want {
		return fmt.Errorf("%w: got %q, want +%s", ErrUnexpectedReply, reply.Str, want)
	}
	return nil
}
