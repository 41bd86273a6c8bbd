package common

import (
	"strconv"
	"strings"

	"github.com/ValentinKolb/xdb/lib/db"
)

// --------------------------------------------------------------------------
// Limits
// --------------------------------------------------------------------------

// MaxLineSize is the longest accepted command line in bytes, without the line terminator.
// It fits a SET with a key and a value of maximum size and a 20 digit ttl.
const MaxLineSize = len("SET ") + db.MaxKeySize + 1 + db.MaxValueSize + 1 + 20

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// CommandType defines the commands of the text protocol.
type CommandType uint8

const (
	CmdUnknown CommandType = iota
	CmdSet
	CmdGet
	CmdDel
	CmdSelectDB
	CmdListDBs
	CmdSave
	CmdSaveAll
	CmdPing
)

var commandNames = map[string]CommandType{
	"SET":      CmdSet,
	"GET":      CmdGet,
	"DEL":      CmdDel,
	"SELECTDB": CmdSelectDB,
	"LISTDBS":  CmdListDBs,
	"SAVE":     CmdSave,
	"SAVEALL":  CmdSaveAll,
	"PING":     CmdPing,
}

// String returns the wire name of a CommandType.
func (t CommandType) String() string {
	switch t {
	case CmdSet:
		return "SET"
	case CmdGet:
		return "GET"
	case CmdDel:
		return "DEL"
	case CmdSelectDB:
		return "SELECTDB"
	case CmdListDBs:
		return "LISTDBS"
	case CmdSave:
		return "SAVE"
	case CmdSaveAll:
		return "SAVEALL"
	case CmdPing:
		return "PING"
	default:
		return "UNKNOWN"
	}
}

// Command is one parsed command line
type Command struct {
	Type CommandType
	Name string   // first token as sent by the client
	Args []string // remaining tokens
}

// Arg returns the i-th argument and whether it was given
func (c Command) Arg(i int) (string, bool) {
	if i >= len(c.Args) {
		return "", false
	}
	return c.Args[i], true
}

// ParseCommand splits a line on whitespace and looks up the command name.
// Command names are case-sensitive. It returns false for a blank line.
func ParseCommand(line string) (Command, bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Command{}, false
	}

	return Command{
		Type: commandNames[tokens[0]],
		Name: tokens[0],
		Args: tokens[1:],
	}, true
}

// EncodeCommand builds a request line. Arguments must not contain whitespace.
func EncodeCommand(cmd CommandType, args ...string) []byte {
	buf := make([]byte, 0, 16+len(args)*16)
	buf = append(buf, cmd.String()...)
	for _, arg := range args {
		buf = append(buf, ' ')
		buf = append(buf, arg...)
	}
	return append(buf, '\r', '\n')
}

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// Reply type markers, the first byte of every reply line
const (
	ReplySimple  = '+'
	ReplyError   = '-'
	ReplyInteger = ':'
	ReplyBulk    = '$'
	ReplyArray   = '*'
)

// Fixed reply texts
const (
	MsgOK            = "OK"
	MsgPong          = "PONG"
	MsgAllSaved      = "OK all databases saved"
	ErrPrefix        = "ERR "
	MsgInvalidSyntax = "invalid syntax"
	MsgSetFailed     = "failed to set key"
	MsgInvalidIndex  = "invalid database index"
	MsgInvalidDB     = "invalid database"
	MsgSaveFailed    = "failed to save database"
	MsgSaveAllFailed = "failed to save databases"
	MsgUnknownCmd    = "unknown command"
	MsgLineTooLong   = "command too long"
)

var crlf = []byte("\r\n")

// AppendSimple appends "+<msg>\r\n"
func AppendSimple(buf []byte, msg string) []byte {
	buf = append(buf, ReplySimple)
	buf = append(buf, msg...)
	return append(buf, crlf...)
}

// AppendError appends "-ERR <msg>\r\n"
func AppendError(buf []byte, msg string) []byte {
	buf = append(buf, ReplyError)
	buf = append(buf, ErrPrefix...)
	buf = append(buf, msg...)
	return append(buf, crlf...)
}

// AppendInteger appends ":<n>\r\n"
func AppendInteger(buf []byte, n int64) []byte {
	buf = append(buf, ReplyInteger)
	buf = strconv.AppendInt(buf, n, 10)
	return append(buf, crlf...)
}

// AppendBulk appends "$<len>\r\n<value>\r\n"
func AppendBulk(buf []byte, value string) []byte {
	buf = append(buf, ReplyBulk)
	buf = strconv.AppendInt(buf, int64(len(value)), 10)
	buf = append(buf, crlf...)
	buf = append(buf, value...)
	return append(buf, crlf...)
}

// AppendNullBulk appends "$-1\r\n", the reply for a missing key
func AppendNullBulk(buf []byte) []byte {
	buf = append(buf, ReplyBulk, '-', '1')
	return append(buf, crlf...)
}

// AppendArrayHeader appends "*<n>\r\n"
func AppendArrayHeader(buf []byte, n int) []byte {
	buf = append(buf, ReplyArray)
	buf = strconv.AppendInt(buf, int64(n), 10)
	return append(buf, crlf...)
}

// FormatDatabase returns the LISTDBS element of a database, "<index>:<name>"
func FormatDatabase(index int, name string) string {
	return strconv.Itoa(index) + ":" + name
}

// ParseDatabase splits a LISTDBS element into index and name
func ParseDatabase(element string) (int, string, bool) {
	indexStr, name, found := strings.Cut(element, ":")
	if !found {
		return 0, "", false
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return 0, "", false
	}
	return index, name, true
}
