package base

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	r := NewLineReader(strings.NewReader("PING\r\nGET key\n\nlast"), 64)

	for _, expected := range []string{"PING", "GET key", "", "last"} {
		line, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, expected, line)
	}

	_, err := r.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestReadLineTooLong(t *testing.T) {
	limit := 32
	input := strings.Repeat("a", limit) + "\n" +
		strings.Repeat("b", limit+1) + "\n" +
		strings.Repeat("c", limit*10) + "\r\n" +
		"PING\n"
	r := NewLineReader(strings.NewReader(input), limit)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Len(t, line, limit)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	// the reader is positioned at the next command
	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "PING", line)
}

func TestReadFull(t *testing.T) {
	r := NewLineReader(strings.NewReader("$5\r\nhe\nlo\r\n"), 64)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "$5", line)

	payload, err := r.ReadFull(5)
	require.NoError(t, err)
	assert.Equal(t, "he\nlo", string(payload))

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "", line)
}
