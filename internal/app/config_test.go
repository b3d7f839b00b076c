package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/lms.sqlite", cfg.Database.Path)
	require.False(t, cfg.Mirror.Enabled)
	require.Equal(t, 3306, cfg.Mirror.Port)
	require.Equal(t, "lms", cfg.Auth.JWT.Issuer)
	require.Equal(t, 8*time.Hour, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Licensing.Enabled)
	require.Equal(t, "@every 6h", cfg.Licensing.Schedule)
	require.False(t, cfg.Scanner.Enabled)
	require.Equal(t, 5, cfg.Scanner.MaxReconnect)
	require.Equal(t, 2*time.Second, cfg.Scanner.Backoff)
	require.Equal(t, 365, cfg.Audit.RetentionDays)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte(`
server:
  port: 9000
  allowed_origins:
    - http://localhost:5173
auth:
  jwt:
    secret: file-secret
    access_token_ttl: 30m
scanner:
  enabled: true
  device: /dev/ttyUSB0
  backoff: 500ms
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.Server.Port)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	require.Equal(t, "file-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.True(t, cfg.Scanner.Enabled)
	require.Equal(t, "/dev/ttyUSB0", cfg.Scanner.Device)
	require.Equal(t, 500*time.Millisecond, cfg.Scanner.Backoff)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LMS_SERVER_PORT", "8100")
	t.Setenv("LMS_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("LMS_DATABASE_DRIVER", "mysql")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8100, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "mysql", cfg.Database.Driver)
}
