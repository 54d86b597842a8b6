package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval())
	assert.Equal(t, 8*time.Millisecond, cfg.MinTimeLeftInFrame())
}

func TestLoadOptionalKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
version: v1.2.0
scheduler:
  min_time_left_in_frame_ms: 4
debug:
  server_port: 9090
`)
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", cfg.Version)
	assert.Equal(t, 16, cfg.Scheduler.FrameIntervalMS)
	assert.Equal(t, 4, cfg.Scheduler.MinTimeLeftInFrameMS)
	assert.Equal(t, 256, cfg.Layout.PoolSize)
	assert.Equal(t, 9090, cfg.Debug.ServerPort)
	assert.InDelta(t, 16.667, cfg.TraceThreshold().Seconds()*1000, 1e-6)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "scheduler: [1"},
		{"bad version", "version: 1.0"},
		{"future major", "version: v2.0.0"},
		{"zero frame", "scheduler:\n  frame_interval_ms: -1"},
		{"budget above frame", "scheduler:\n  min_time_left_in_frame_ms: 20"},
		{"negative pool", "layout:\n  pool_size: -3"},
		{"port", "debug:\n  server_port: 70000"},
		{"negative samples", "trace:\n  samples: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyVersionTakesDefault(t *testing.T) {
	cfg, err := Parse([]byte("layout:\n  pool_size: 8\n"))
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", cfg.Version)
	assert.Equal(t, 8, cfg.Layout.PoolSize)
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeFile(t, filepath.Join(root, FileName), "version: v1.0.0\n")

	path, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, FileName), path)
}

func TestLoadMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
