package common

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/xdb/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("SET  key\tvalue 10 ")
	require.True(t, ok)
	assert.Equal(t, CmdSet, cmd.Type)
	assert.Equal(t, "SET", cmd.Name)
	assert.Equal(t, []string{"key", "value", "10"}, cmd.Args)

	arg, ok := cmd.Arg(2)
	assert.True(t, ok)
	assert.Equal(t, "10", arg)
	_, ok = cmd.Arg(3)
	assert.False(t, ok)

	_, ok = ParseCommand("   ")
	assert.False(t, ok)

	// command names are case-sensitive
	cmd, ok = ParseCommand("get key")
	require.True(t, ok)
	assert.Equal(t, CmdUnknown, cmd.Type)

	for name, typ := range commandNames {
		cmd, ok := ParseCommand(name)
		require.True(t, ok)
		assert.Equal(t, typ, cmd.Type)
		assert.Equal(t, name, typ.String())
	}
}

func TestEncodeCommand(t *testing.T) {
	assert.Equal(t, "PING\r\n", string(EncodeCommand(CmdPing)))
	assert.Equal(t, "SET k v 5\r\n", string(EncodeCommand(CmdSet, "k", "v", "5")))
}

func TestReplies(t *testing.T) {
	assert.Equal(t, "+OK\r\n", string(AppendSimple(nil, MsgOK)))
	assert.Equal(t, "+PONG\r\n", string(AppendSimple(nil, MsgPong)))
	assert.Equal(t, "+OK all databases saved\r\n", string(AppendSimple(nil, MsgAllSaved)))
	assert.Equal(t, "-ERR unknown command\r\n", string(AppendError(nil, MsgUnknownCmd)))
	assert.Equal(t, ":1\r\n", string(AppendInteger(nil, 1)))
	assert.Equal(t, "$5\r\nhello\r\n", string(AppendBulk(nil, "hello")))
	assert.Equal(t, "$0\r\n\r\n", string(AppendBulk(nil, "")))
	assert.Equal(t, "$-1\r\n", string(AppendNullBulk(nil)))
	assert.Equal(t, "*2\r\n", string(AppendArrayHeader(nil, 2)))

	buf := AppendArrayHeader(nil, 1)
	buf = AppendBulk(buf, FormatDatabase(0, "main"))
	assert.Equal(t, "*1\r\n$6\r\n0:main\r\n", string(buf))
}

func TestMaxLineSize(t *testing.T) {
	key := strings.Repeat("k", db.MaxKeySize)
	value := strings.Repeat("v", db.MaxValueSize)
	line := EncodeCommand(CmdSet, key, value, "9223372036854775807")
	assert.LessOrEqual(t, len(line)-2, MaxLineSize)
}

func TestParseDatabase(t *testing.T) {
	index, name, ok := ParseDatabase("12:cache")
	require.True(t, ok)
	assert.Equal(t, 12, index)
	assert.Equal(t, "cache", name)

	_, _, ok = ParseDatabase("nocolon")
	assert.False(t, ok)
	_, _, ok = ParseDatabase("x:name")
	assert.False(t, ok)
}
