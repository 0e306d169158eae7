package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.True(t, cfg.Auth.Disabled)
}

func TestLoadParsesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"storage": {"backend": "file", "fileDataDir": "/var/lib/ctxstore"},
		"server": {"listenAddr": ":9090"},
		"auth": {"disabled": false, "secret": "s3cr3t"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/ctxstore", cfg.Storage.FileDataDir)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.False(t, cfg.Auth.Disabled)
	assert.Equal(t, "s3cr3t", cfg.Auth.Secret)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CTXSTORE_STORAGE_BACKEND", "file")
	t.Setenv("CTXSTORE_SERVER_LISTEN_ADDR", ":1234")

	cfg := ApplyEnvOverrides(Default(), "CTXSTORE")
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, ":1234", cfg.Server.ListenAddr)
}
