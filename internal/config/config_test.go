package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, ByteSize(2<<40), cfg.MemoryLimit)
	assert.Equal(t, "2.0 TiB", cfg.MemoryLimit.String())
	assert.Equal(t, StoreHDF5, cfg.Store)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emdinfo.yaml")
	content := "log_level: debug\nmemory_limit: 512 MiB\nsample_size: 500\nstore: badger\nbadger:\n  compression_level: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ByteSize(512<<20), cfg.MemoryLimit)
	assert.Equal(t, 500, cfg.SampleSize)
	assert.Equal(t, StoreBadger, cfg.Store)
	assert.Equal(t, 1, cfg.Badger.CompressionLevel)
	assert.True(t, cfg.Color)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"level":       "log_level: loud\n",
		"size":        "memory_limit: lots\n",
		"sample":      "sample_size: 0\n",
		"compression": "badger:\n  compression_level: 12\n",
		"store":       "store: sqlite\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
