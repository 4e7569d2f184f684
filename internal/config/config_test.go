package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"achieveit/internal/config"
	"achieveit/internal/keyring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "achieveit.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv("ACHIEVEIT_CONFIG_PATH", t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Session.RecentLoginWindow)
	assert.Equal(t, "https://oauth2.googleapis.com/revoke", cfg.Google.RevokeURL)
	assert.Equal(t, ":8080", cfg.GetServerAddr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	gokeyring.MockInit()
	path := writeFile(t, `
server:
  port: "9090"
store:
  driver: disk
  path: /tmp/achieveit-test
session:
  idle_timeout: 30m
`)
	t.Setenv("ACHIEVEIT_SERVER_PORT", "7070")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "disk", cfg.Store.Driver)
	assert.Equal(t, "/tmp/achieveit-test", cfg.Store.Path)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
}

func TestLoad_SecretsFromKeyring(t *testing.T) {
	gokeyring.MockInit()
	require.NoError(t, keyring.Set(keyring.SessionSecret, "from-keyring"))
	t.Cleanup(func() { _ = keyring.Delete(keyring.SessionSecret) })
	t.Setenv("ACHIEVEIT_CONFIG_PATH", t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cfg.Session.Secret)
}

func TestLoad_Validation(t *testing.T) {
	gokeyring.MockInit()

	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown driver", content: "store:\n  driver: mongo\n"},
		{name: "postgres without url", content: "store:\n  driver: postgres\n"},
		{name: "empty port", content: "server:\n  port: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	gokeyring.MockInit()
	path := filepath.Join(t.TempDir(), "achieveit.yml")

	def := config.Default()
	def.Server.Port = "8181"
	require.NoError(t, config.Write(path, def))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, def.Session.TTL, cfg.Session.TTL)

	assert.Error(t, config.Write(path, def), "existing file must not be overwritten")
}
