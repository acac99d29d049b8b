package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:3000/api", cfg.BaseURL)
	assert.Equal(t, "users", cfg.Collection)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 8765, cfg.AuthPort)
	assert.False(t, cfg.VerifySSL)
	assert.True(t, cfg.BypassLocalhostProxy)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
base-url: "https://cms.example.com/api"
auth-token: "seed"
collection: "admins"
timeout: 10
verify-ssl: true
auth-port: 9001
debug: true
request-log: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://cms.example.com/api", cfg.BaseURL)
	assert.Equal(t, "seed", cfg.AuthToken)
	assert.Equal(t, "admins", cfg.Collection)
	assert.Equal(t, 10*time.Second, cfg.Timeout())
	assert.True(t, cfg.VerifySSL)
	assert.Equal(t, 9001, cfg.AuthPort)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.RequestLog)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base-url: [broken"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`base-url: "http://file:3000/api"`), 0o600))

	t.Setenv("PAYLOAD_MCP_BASE_URL", "http://env:3000/api")
	t.Setenv("PAYLOAD_MCP_AUTH_PORT", "9100")
	t.Setenv("PAYLOAD_MCP_VERIFY_SSL", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env:3000/api", cfg.BaseURL)
	assert.Equal(t, 9100, cfg.AuthPort)
	assert.True(t, cfg.VerifySSL)
}

func TestLoadConfigNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: -5\nauth-port: 0\ncollection: \"\""), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, cfg.Timeout())
	assert.Equal(t, DefaultAuthPort, cfg.AuthPort)
	assert.Equal(t, DefaultCollection, cfg.Collection)
}
