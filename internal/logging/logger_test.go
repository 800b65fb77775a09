package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewApplicationLoggerWritesJSONFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	logger, sync, err := NewApplicationLogger(Path(dir), Level("debug"), Console(false))
	require.NoError(t, err)

	logger.Debug("clip saved", zap.Int("clip_index", 3))
	sync()

	data, err := os.ReadFile(FilePath(dir, DefaultName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "clip saved", entry["msg"])
	assert.Equal(t, "pacenotes", entry["logger"])
	assert.EqualValues(t, 3, entry["clip_index"])
}

func TestNewApplicationLoggerRespectsLevel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, sync, err := NewApplicationLogger(Name("doctor"), Path(dir), Level("warn"), Console(false))
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	sync()

	data, err := os.ReadFile(FilePath(dir, "doctor"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNewApplicationLoggerWithoutSinksIsNop(t *testing.T) {
	t.Parallel()

	logger, sync, err := NewApplicationLogger(Console(false))
	require.NoError(t, err)
	defer sync()
	logger.Info("dropped")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}
