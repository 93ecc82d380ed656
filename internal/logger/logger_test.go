package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewLoggerConsoleOnlyWritesToStderr(t *testing.T) {
	l := NewLogger(Config{Level: slog.LevelInfo})
	require.NotNil(t, l)
	// Exercises every log level without a panic; stderr output isn't
	// captured here, the fanout wiring is what's under test.
	l.Info("hello")
	l.Debug("should be filtered at info level")
	l.Warn("warn")
	l.Error("error")
}

func TestNewLoggerWithFilePathAddsRotatingSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logpulse.log")

	l := NewLogger(Config{Level: slog.LevelInfo, FilePath: path})
	l.Infof("line %d", 1)
	l.Errorf("boom: %s", "oops")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "line 1")
	assert.Contains(t, string(data), "boom: oops")
}

func TestLoggerWithReturnsScopedLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scoped.log")
	l := NewLogger(Config{Level: slog.LevelInfo, FilePath: path})

	scoped := l.With("component", "tailer")
	scoped.Info("tailing started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"tailer"`)
	assert.Contains(t, string(data), "tailing started")
}

func TestLoggerSlogReturnsUnderlyingHandle(t *testing.T) {
	l := NewLogger(Config{Level: slog.LevelInfo})
	assert.NotNil(t, l.Slog())
}

func TestNewRotatingWriterAppliesDefaults(t *testing.T) {
	w := newRotatingWriter(Config{FilePath: "/tmp/does-not-matter.log"})
	require.NotNil(t, w)
}
