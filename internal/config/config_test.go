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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9000
jwt:
  secret: s3cret
store:
  path: `+filepath.Join(dir, "data", "test.db")+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DefaultSessionLifetime, cfg.Security.SessionLifetime)
	assert.Equal(t, DefaultSweepInterval, cfg.Security.SweepInterval)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())

	// The data directory was created.
	_, statErr := os.Stat(filepath.Join(dir, "data"))
	assert.NoError(t, statErr)
}

func TestLoadRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestLoadRequiresPort(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: s3cret
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 9000
jwt:
  secret: from-file
`)

	t.Setenv("FILEPANEL_JWT_SECRET", "from-env")
	t.Setenv("FILEPANEL_PORT", "7777")
	t.Setenv("FILEPANEL_STORE_PATH", filepath.Join(dir, "env.db"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.Store.Path)
}

func TestEnvSecretAloneSatisfiesRequirement(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)

	t.Setenv("FILEPANEL_JWT_SECRET", "env-only")
	t.Setenv("FILEPANEL_STORE_PATH", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.JWT.Secret)
}

func TestSessionLifetimeParses(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
jwt:
  secret: s3cret
security:
  session_lifetime: 24h
  sweep_interval: 30m
`)

	t.Setenv("FILEPANEL_STORE_PATH", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Security.SessionLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Security.SweepInterval)
}

func TestBadSessionLifetimeRejected(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
jwt:
  secret: s3cret
security:
  session_lifetime: soon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session_lifetime")
}
