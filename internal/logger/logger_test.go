package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)

	l.Infow("hidden", "target_id", "a")
	l.Warnw("shown", "target_id", "b")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "WARN")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "loud", Console: &buf})
	require.NoError(t, err)

	l.Debug("debug line")
	l.Info("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "outreach.log")
	l, err := New(Options{Level: "info", ToFile: true, FilePath: path})
	require.NoError(t, err)

	l.Infow("Target contacted", "target_id", "https://x/in/a")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "Target contacted", entry["msg"])
	assert.Equal(t, "https://x/in/a", entry["target_id"])
}

func TestPackageHelpersUseGlobal(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "debug", Console: &buf})
	require.NoError(t, err)

	Set(l)
	t.Cleanup(func() { Set(zap.NewNop().Sugar()) })

	Debug("checking ledger", "records", 3)
	Info("session started")

	assert.Contains(t, buf.String(), "checking ledger")
	assert.Contains(t, buf.String(), "records")
	assert.Contains(t, buf.String(), "session started")
	assert.Contains(t, buf.String(), "logger_test.go")
}

func TestSetBuildsHelperLoggerOnce(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core, zap.AddCaller()).Sugar())
	t.Cleanup(func() { Set(zap.NewNop().Sugar()) })

	h := helperLogger()
	Info("first", "n", 1)
	Warn("second")
	assert.Same(t, h, helperLogger())

	entries := logs.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Caller.File, "logger_test.go"), e.Caller.File)
	}
	assert.Equal(t, int64(1), entries[0].ContextMap()["n"])

	With("run_id", "r1").Info("direct")
	require.Len(t, logs.All(), 3)
	assert.True(t, strings.HasSuffix(logs.All()[2].Caller.File, "logger_test.go"))
}
