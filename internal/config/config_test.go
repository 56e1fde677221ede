package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadConfigFile(t *testing.T) {
	path := writeConfig(t, `{
		"Port": "8080",
		"AccessTokenSecret": "access",
		"RefreshTokenSecret": "refresh",
		"AccessTokenLifetime": "15m",
		"AllowedOrigins": ["http://localhost:5173"],
		"OIDC": [{"Name": "google", "ClientID": "abc", "ProviderURL": "https://accounts.google.com"}]
	}`)

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "localhost", cfg.Address)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenLifetime)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenLifetime)
	assert.True(t, cfg.SelfContained)
	assert.True(t, cfg.EnforceMessageMembership)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
	require.Len(t, cfg.OIDC, 1)
	assert.Equal(t, "google", cfg.OIDC[0].Name)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"AccessTokenSecret": "access", "RefreshTokenSecret": "refresh"}`)
	t.Setenv("CHATAPP_PORT", "9999")
	t.Setenv("CHATAPP_ENFORCEMESSAGEMEMBERSHIP", "false")

	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.False(t, cfg.EnforceMessageMembership)
}

func TestMissingSecrets(t *testing.T) {
	path := writeConfig(t, `{"AccessTokenSecret": "same", "RefreshTokenSecret": "same"}`)

	_, err := Read(path)
	assert.Error(t, err)

	_, err = Read(writeConfig(t, `{}`))
	assert.Error(t, err)
}

func TestMysqlNeedsDatabase(t *testing.T) {
	path := writeConfig(t, `{"AccessTokenSecret": "a", "RefreshTokenSecret": "b", "SelfContained": false}`)

	_, err := Read(path)
	assert.Error(t, err)
}
