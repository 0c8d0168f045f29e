package globalconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg := Default("sources_catalog.csv", "logs")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sources_catalog.csv"), got.CatalogPath)
	assert.Equal(t, filepath.Join(dir, "logs"), got.StateDir)
	assert.Equal(t, filepath.Join(dir, "logs", "history.db"), got.HistoryPath())
	assert.Equal(t, config.DefaultRequestDelay, got.RequestDelay)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing catalog", "state_dir: logs\n"},
		{"bad log level", "catalog_path: c.csv\nstate_dir: logs\nlog:\n  level: loud\n"},
		{"too many retries", "catalog_path: c.csv\nstate_dir: logs\nmax_retries: 50\n"},
		{"negative delay", "catalog_path: c.csv\nstate_dir: logs\nrequest_delay: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestMonitorConfig_Overlay(t *testing.T) {
	zero := 0
	cfg := &PersistentConfig{
		CatalogPath:   "c.csv",
		StateDir:      "logs",
		RequestDelay:  500 * time.Millisecond,
		MaxRetries:    &zero,
		StaticSources: []string{},
	}
	mc := cfg.MonitorConfig()
	assert.Equal(t, 500*time.Millisecond, mc.RequestDelay)
	assert.Equal(t, 0, mc.MaxRetries)
	assert.Equal(t, config.DefaultRequestTimeout, mc.RequestTimeout)
	assert.Empty(t, mc.StaticSources)

	mc = (&PersistentConfig{}).MonitorConfig()
	assert.Equal(t, config.DefaultMaxRetries, mc.MaxRetries)
	assert.Equal(t, config.DefaultStaticSources, mc.StaticSources)
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.yml")
	t.Setenv(EnvConfigPath, want)

	got, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
