package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Markers.Type)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 7, cfg.Scheduler.WindowPastDays)
	assert.Equal(t, 30, cfg.Scheduler.WindowFutureDays)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.FetchTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.AlertDelay)
	assert.Equal(t, "patch", cfg.Scheduler.WriteBack)
	assert.False(t, cfg.Scheduler.CatchUpMissed)
	assert.False(t, cfg.PushEnabled())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  type: sqlite
  sqlite_path: /tmp/planner.db
scheduler:
  interval: 30s
  catch_up_missed: true
  timezone: UTC
log:
  format: console
`), 0o644))

	t.Setenv("PLANNER_SCHEDULER__WRITE_BACK", "replace")
	t.Setenv("PLANNER_MARKERS__TYPE", "redis")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/tmp/planner.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.CatchUpMissed)
	assert.Equal(t, "replace", cfg.Scheduler.WriteBack)
	assert.Equal(t, "redis", cfg.Markers.Type)
	assert.Equal(t, "console", cfg.Log.Format)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30, cfg.Scheduler.WindowFutureDays)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Storage.Type)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"storage type", func(c *Config) { c.Storage.Type = "postgres" }},
		{"marker type", func(c *Config) { c.Markers.Type = "etcd" }},
		{"interval", func(c *Config) { c.Scheduler.Interval = 0 }},
		{"window", func(c *Config) { c.Scheduler.WindowPastDays = -1 }},
		{"write back", func(c *Config) { c.Scheduler.WriteBack = "merge" }},
		{"timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"tls pair", func(c *Config) { c.Server.TLSCert = "cert.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
