//nolint:gosec // G306: Test files use standard permissions
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzdarsky/srpgate/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	certPath := filepath.Join(tmpDir, "server.crt")
	keyPath := filepath.Join(tmpDir, "server.key")
	require.NoError(t, os.WriteFile(certPath, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(keyPath, []byte("key"), 0o600))

	configYAML := `
server:
  address: "127.0.0.1"
  port: 9443
  tls_cert: "` + certPath + `"
  tls_key: "` + keyPath + `"

srp:
  group_bits: 3072
  hash: sha512
  salt_bytes: 16

auth:
  handshake_ttl: "90s"
  max_handshakes: 64
  session_ttl: "1h"
  max_sessions: 8
  rate_limit:
    delays: ["500ms", "1s"]
    lockout: "5m"

store:
  path: "` + filepath.Join(tmpDir, "accounts.yaml") + `"

logging:
  level: "debug"
  format: "human"
`

	cfg, err := config.Load(writeConfig(t, configYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9443", cfg.ListenAddr())
	assert.True(t, cfg.TLSEnabled())
	assert.Equal(t, 3072, cfg.SRP.GroupBits)
	assert.Equal(t, "sha512", cfg.SRP.Hash)
	assert.Equal(t, 16, cfg.SRP.SaltBytes)
	assert.Equal(t, 64, cfg.Auth.MaxHandshakes)
	assert.Equal(t, 8, cfg.Auth.MaxSessions)
	assert.Equal(t, "debug", cfg.Logging.Level)

	ttl, err := cfg.GetHandshakeTTL()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, ttl)

	sessionTTL, err := cfg.GetSessionTTL()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, sessionTTL)

	delays, lockout, err := cfg.GetRateLimit()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, delays)
	assert.Equal(t, 5*time.Minute, lockout)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "logging:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8443", cfg.ListenAddr())
	assert.False(t, cfg.TLSEnabled())
	assert.Equal(t, 2048, cfg.SRP.GroupBits)
	assert.Equal(t, "sha256", cfg.SRP.Hash)
	assert.Equal(t, 32, cfg.SRP.SaltBytes)
	assert.Equal(t, 1024, cfg.Auth.MaxHandshakes)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	ttl, err := cfg.GetHandshakeTTL()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, ttl)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "accounts.yaml")
	t.Setenv(config.EnvListen, "0.0.0.0:7000")
	t.Setenv(config.EnvStorePath, storePath)

	cfg, err := config.Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, storePath, cfg.Store.Path)
}

func TestLoad_InvalidEnvListen(t *testing.T) {
	t.Setenv(config.EnvListen, "no-port")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvListen)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "server: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{
			name:   "port out of range",
			mutate: func(c *config.Config) { c.Server.Port = 70000 },
			errMsg: "server.port must be between 1 and 65535",
		},
		{
			name:   "tls cert without key",
			mutate: func(c *config.Config) { c.Server.TLSCert = "/etc/srpgate/server.crt" },
			errMsg: "must be set together",
		},
		{
			name:   "tls files missing",
			mutate: func(c *config.Config) { c.Server.TLSCert, c.Server.TLSKey = "/nonexistent/a", "/nonexistent/b" },
			errMsg: "server.tls_",
		},
		{
			name:   "self signed without paths",
			mutate: func(c *config.Config) { c.Server.SelfSigned = true },
			errMsg: "server.self_signed requires",
		},
		{
			name:   "unknown group",
			mutate: func(c *config.Config) { c.SRP.GroupBits = 1000 },
			errMsg: "unknown SRP group",
		},
		{
			name:   "unknown hash",
			mutate: func(c *config.Config) { c.SRP.Hash = "md5" },
			errMsg: "unknown hash algorithm",
		},
		{
			name:   "short salt",
			mutate: func(c *config.Config) { c.SRP.SaltBytes = 4 },
			errMsg: "srp.salt_bytes",
		},
		{
			name:   "bad handshake ttl",
			mutate: func(c *config.Config) { c.Auth.HandshakeTTL = "soon" },
			errMsg: "invalid handshake_ttl",
		},
		{
			name:   "short session ttl",
			mutate: func(c *config.Config) { c.Auth.SessionTTL = "10s" },
			errMsg: "session_ttl must be at least 1 minute",
		},
		{
			name:   "no handshake capacity",
			mutate: func(c *config.Config) { c.Auth.MaxHandshakes = 0 },
			errMsg: "auth.max_handshakes must be positive",
		},
		{
			name:   "bad rate limit delay",
			mutate: func(c *config.Config) { c.Auth.RateLimit.Delays = []string{"1s", "x"} },
			errMsg: "rate_limit.delays[1]",
		},
		{
			name:   "relative store path",
			mutate: func(c *config.Config) { c.Store.Path = "accounts.yaml" },
			errMsg: "store.path must be an absolute path",
		},
		{
			name:   "store path is directory",
			mutate: func(c *config.Config) { c.Store.Path = os.TempDir() },
			errMsg: "must be a file",
		},
		{
			name:   "bad log level",
			mutate: func(c *config.Config) { c.Logging.Level = "verbose" },
			errMsg: "logging.level",
		},
		{
			name:   "bad log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			errMsg: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			err := config.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_Default(t *testing.T) {
	assert.NoError(t, config.Validate(config.Default()))
}

func TestValidate_SelfSignedSkipsFileCheck(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.TLSCert = filepath.Join(dir, "server.crt")
	cfg.Server.TLSKey = filepath.Join(dir, "server.key")
	cfg.Server.SelfSigned = true

	require.NoError(t, config.Validate(cfg))
	assert.True(t, cfg.TLSEnabled())
}
