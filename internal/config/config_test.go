package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	opts, err := ParseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", opts.Port)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Equal(t, "certs", opts.CertsDir)
	assert.Equal(t, 5*time.Minute, opts.CacheTTL)
	assert.Equal(t, time.Hour, opts.CleanupInterval)
	assert.Equal(t, 30*24*time.Hour, opts.Retention)
	assert.Empty(t, opts.RedisAddr)
}

func TestParseArgs_Flags(t *testing.T) {
	t.Chdir(t.TempDir())

	opts, err := ParseArgs([]string{"-a", ":9000", "-d", "postgres://x", "-r", "localhost:6379", "-retention", "48h"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", opts.Port)
	assert.Equal(t, "postgres://x", opts.DatabaseDSN)
	assert.Equal(t, "localhost:6379", opts.RedisAddr)
	assert.Equal(t, 48*time.Hour, opts.Retention)
}

func TestParseArgs_ConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"address":":7000","database_dsn":"from-file","log_level":"debug"}`), 0o600))

	t.Setenv("DATABASE_DSN", "from-env")
	t.Setenv("CATALOG_FILE", "catalog.yaml")

	opts, err := ParseArgs([]string{"-c", path, "-d", "from-flag"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", opts.Port)
	assert.Equal(t, "from-env", opts.DatabaseDSN)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "catalog.yaml", opts.CatalogFile)
}

func TestParseArgs_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := ParseArgs([]string{"-unknown"})
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	_, err = ParseArgs([]string{"-config", bad})
	assert.ErrorContains(t, err, "error while parsing config file")

	t.Setenv("CACHE_TTL", "soon")
	_, err = ParseArgs(nil)
	assert.ErrorContains(t, err, "parse env")
}
