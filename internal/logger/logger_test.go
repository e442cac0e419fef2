package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shokucho.jp/portal/internal/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromWriter(buff).Make()
	require.NoError(t, err)
	require.Equal(t, 0, buff.Len())

	l.Info().Str("component", "test").Msg("hello")
	assert.Contains(t, buff.String(), `"message":"hello"`)
	assert.Contains(t, buff.String(), `"component":"test"`)
	assert.Contains(t, buff.String(), `"time":`)
}

func TestLevelFilters(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromWriter(buff).WithLevel("WARN").Make()
	require.NoError(t, err)

	l.Info().Msg("dropped")
	l.Warn().Msg("kept")
	assert.NotContains(t, buff.String(), "dropped")
	assert.Contains(t, buff.String(), "kept")
}

func TestBadLevel(t *testing.T) {
	_, err := logger.New().WithLevel("loud").Make()
	assert.Error(t, err)
}

func TestConsole(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	l, err := logger.New().FromWriter(buff).Console(true).Make()
	require.NoError(t, err)

	l.Info().Msg("readable")
	assert.Contains(t, buff.String(), "readable")
	assert.NotContains(t, buff.String(), `"message"`)
}

func TestFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := logger.New().FromPath(path).Make()
	require.NoError(t, err)

	l.Error().Msg("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
