package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := logOutput
	logOutput = &buf
	t.Cleanup(func() { logOutput = previous })

	l := CreateLogger("store")

	l.Infof("loaded %d entries", 3)
	l.Debugf("hidden at info level")
	assert.Contains(t, buf.String(), "INFO  | store      | loaded 3 entries")
	assert.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("not shown")
	l.Errorf("save failed")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "ERROR | store      | save failed")

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("now visible")
	assert.Contains(t, buf.String(), "DEBUG | store      | now visible")

	assert.Panics(t, func() { l.Panicf("boom") })
}

func TestInitLoggers(t *testing.T) {
	require.NoError(t, InitLoggers("warn"))
	require.NoError(t, InitLoggers("info"))
	assert.Error(t, InitLoggers("loud"))
}
