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

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{}.Validate())
	assert.NoError(t, Options{Level: "debug", Format: "JSON"}.Validate())
	assert.Error(t, Options{Format: "xml"}.Validate())
	assert.Error(t, Options{Level: "trace"}.Validate())
	assert.Error(t, Options{MaxBackups: -1}.Validate())
}

func TestNew_TextConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "collection", "example.com")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "collection=example.com")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Format: "json", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("sync completed", "fetched", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sync completed", line["msg"])
	assert.Equal(t, float64(3), line["fetched"])
}

func TestNew_FileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "sitesync.log")

	logger, closer, err := New(Options{File: path, Console: &buf})
	require.NoError(t, err)

	logger.Info("written twice")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written twice")
	assert.Contains(t, buf.String(), "written twice")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, _, err := New(Options{Level: "verbose"})
	assert.Error(t, err)
}

func TestSetup_InstallsDefault(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var buf bytes.Buffer
	logger, closer, err := Setup(Options{Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	assert.Same(t, logger, slog.Default())
	slog.Info("via default")
	assert.Contains(t, buf.String(), "via default")
}
