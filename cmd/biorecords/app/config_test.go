package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biorecords/biorecords/internal/cmd/globals"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "biorecords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := writeConfig(t, `
database: /var/lib/biorecords/records.db
log_level: debug
server:
  port: 9090
  cors_origins:
    - https://records.example.org
  cache_ttl: 1m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "/var/lib/biorecords/records.db", cfg.Database)
	assert.Equal(t, "debug", cfg.DefaultLogLevel)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	srv := cfg.Server()
	assert.Equal(t, 9090, srv.Port)
	assert.Equal(t, "localhost", srv.Host)
	assert.True(t, srv.CORSEnabled)
	assert.Equal(t, []string{"https://records.example.org"}, srv.CORSOrigins)
	assert.Equal(t, time.Minute, srv.CacheTTL)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("BIORECORDS_DATABASE", "env.db")
	t.Setenv("LOG_LEVEL", "warn")
	path := writeConfig(t, "log_level: debug\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, "warn", cfg.DefaultLogLevel)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUpdateFromFlags(t *testing.T) {
	cfg := &Config{Database: DefaultDatabase, Output: "yaml"}
	cfg.UpdateFromFlags(&globals.Flags{Database: "other.db", LogLevel: "trace", Quiet: true})

	assert.Equal(t, "other.db", cfg.Database)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.Quiet)
}
