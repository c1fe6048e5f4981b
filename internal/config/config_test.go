package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfigFile(t, "logger:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/underwriting.db", cfg.Database.Path)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 100, cfg.Scheduler.BatchSize)
	assert.Equal(t, "*/15 * * * *", cfg.Sweeps.DocumentExpirationCron)
	assert.Equal(t, "0 * * * *", cfg.Sweeps.SLARefreshCron)
	assert.Equal(t, 500, cfg.Sweeps.SweepBatchSize)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: /tmp/test.db
scheduler:
  poll_interval: 5s
  batch_size: 10
sweeps:
  sweep_batch_size: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 50, cfg.Sweeps.SweepBatchSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Database:  DatabaseConfig{Path: "data/test.db"},
		Scheduler: SchedulerConfig{PollInterval: time.Second, BatchSize: 1},
		Sweeps: SweepsConfig{
			DocumentExpirationCron: "*/15 * * * *",
			SLARefreshCron:         "0 * * * *",
			SweepBatchSize:         1,
		},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero poll interval", func(c *Config) { c.Scheduler.PollInterval = 0 }},
		{"zero batch size", func(c *Config) { c.Scheduler.BatchSize = 0 }},
		{"zero sweep batch size", func(c *Config) { c.Sweeps.SweepBatchSize = 0 }},
		{"missing expiration cron", func(c *Config) { c.Sweeps.DocumentExpirationCron = "" }},
		{"missing refresh cron", func(c *Config) { c.Sweeps.SLARefreshCron = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
