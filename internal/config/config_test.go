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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt_secret: "s3cret"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Security.LockDuration)
	assert.Equal(t, 60*time.Second, cfg.Security.PinTTL)
	assert.Equal(t, 3, cfg.Security.MaxRecoveryAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Security.TokenTTL)
	assert.Equal(t, "remote", cfg.Notifications.Mode)
}

func TestLoadReadsYAMLDurations(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
security:
  jwt_secret: "s3cret"
  lock_duration: 5m
  pin_ttl: 2m
notifications:
  mode: direct
  timeout: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Security.LockDuration)
	assert.Equal(t, 2*time.Minute, cfg.Security.PinTTL)
	assert.Equal(t, "direct", cfg.Notifications.Mode)
	assert.Equal(t, 3*time.Second, cfg.Notifications.Timeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt_secret: "from-file"
profile:
  base_url: "http://file"
`)
	t.Setenv("SECRET_KEY", "from-env")
	t.Setenv("URL_USERS", "http://users:8001")
	t.Setenv("PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Security.JWTSecret)
	assert.Equal(t, "http://users:8001", cfg.Profile.BaseURL)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "env-only")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Security.JWTSecret)
}

func TestValidateRejectsMissingSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8000\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt_secret: "x"
notifications:
  mode: pigeon
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pigeon")
}
