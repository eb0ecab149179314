package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestSetupJSON(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, closer, err := Setup("wallet-swap", Options{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("requesting exchange rates", "from", "bitcoin")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "wallet-swap", line["service"])
	assert.Equal(t, "bitcoin", line["from"])
	assert.Equal(t, "DEBUG", line["level"])
}

func TestSetupFiltersByLevel(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger, _, err := Setup("wallet-swap", Options{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupWritesFile(t *testing.T) {
	restoreDefault(t)
	path := filepath.Join(t.TempDir(), "logs", "wallet-swap.log")

	logger, closer, err := Setup("wallet-swap", Options{File: path, MaxSizeMB: 1}, nil)
	require.NoError(t, err)
	logger.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestSetupRejectsUnknownSettings(t *testing.T) {
	_, _, err := Setup("wallet-swap", Options{Level: "loud"}, nil)
	assert.Error(t, err)

	_, _, err = Setup("wallet-swap", Options{Format: "xml"}, nil)
	assert.Error(t, err)
}
