package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "habitlab.log")
	l, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("record saved", "experiment_id", "e1")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1, "debug is below the level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "record saved", entry["msg"])
	assert.Equal(t, "e1", entry["experiment_id"])
}

func TestNew_NoSinks(t *testing.T) {
	l, err := New(Options{})
	require.NoError(t, err)
	assert.NotPanics(t, func() { l.Info("dropped") })
	assert.NoError(t, l.Close())
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}
