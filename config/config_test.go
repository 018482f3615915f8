package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "HISTORY_BACKEND", "SQLITE_PATH", "REDIS_ADDR", "SESSION_TTL", "SCHEDULE_FILE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.History.Backend)
	assert.Equal(t, ":memory:", cfg.History.SQLitePath)
	assert.Equal(t, 100, cfg.History.MaxEntries)
	assert.Equal(t, 24*time.Hour, cfg.History.SessionTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
history:
  backend: sqlite
  sqlite_path: /tmp/history.db
  max_entries: 5
  session_ttl: 30m
schedule_file: configs/schedule.yaml
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, BackendSQLite, cfg.History.Backend)
	assert.Equal(t, "/tmp/history.db", cfg.History.SQLitePath)
	assert.Equal(t, 5, cfg.History.MaxEntries)
	assert.Equal(t, 30*time.Minute, cfg.History.SessionTTL)
	assert.Equal(t, "configs/schedule.yaml", cfg.ScheduleFile)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("PORT", "7070")
	t.Setenv("HISTORY_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, BackendRedis, cfg.History.Backend)
	assert.Equal(t, "cache:6379", cfg.History.RedisAddr)
	assert.Equal(t, 2*time.Hour, cfg.History.SessionTTL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_ZeroSessionTTLDisablesExpiry(t *testing.T) {
	// GIVEN: a config that sets session_ttl to zero explicitly
	// THEN: the zero survives loading instead of becoming the 24h default
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "history:\n  session_ttl: 0s\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Duration(0), cfg.History.SessionTTL)
	assert.Equal(t, 100, cfg.History.MaxEntries)

	// An absent key still gets the default.
	cfg, err = Load(writeConfig(t, "history:\n  backend: sqlite\n"))
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.History.SessionTTL)
}

func TestLoad_ZeroSessionTTLFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_TTL", "0")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.History.SessionTTL)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [oops"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.History.Backend = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.History.Backend = BackendMemory
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}
