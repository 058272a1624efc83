// Package config provides configuration loading and validation for srpgate.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fzdarsky/srpgate/pkg/srp"
)

// Environment variables that override file settings.
const (
	EnvListen    = "SRPGATE_LISTEN"
	EnvStorePath = "SRPGATE_STORE_PATH"
)

// Config represents the srpgate daemon configuration.
type Config struct {
	Server  ServerSettings  `yaml:"server"`
	SRP     SRPSettings     `yaml:"srp"`
	Auth    AuthSettings    `yaml:"auth"`
	Store   StoreSettings   `yaml:"store"`
	Logging LoggingSettings `yaml:"logging"`
}

// ServerSettings configures the HTTP listener. TLS is enabled when both
// TLSCert and TLSKey are set. With SelfSigned, a missing certificate and
// key are generated at those paths on startup.
type ServerSettings struct {
	Address    string `yaml:"address"`
	Port       int    `yaml:"port"`
	TLSCert    string `yaml:"tls_cert"`
	TLSKey     string `yaml:"tls_key"`
	SelfSigned bool   `yaml:"self_signed"`
}

// SRPSettings selects the parameters for newly created accounts.
type SRPSettings struct {
	GroupBits int    `yaml:"group_bits"`
	Hash      string `yaml:"hash"`
	SaltBytes int    `yaml:"salt_bytes"`
}

// AuthSettings bounds handshakes, sessions and failed attempts.
type AuthSettings struct {
	HandshakeTTL  string            `yaml:"handshake_ttl"`
	MaxHandshakes int               `yaml:"max_handshakes"`
	SessionTTL    string            `yaml:"session_ttl"`
	MaxSessions   int               `yaml:"max_sessions"`
	RateLimit     RateLimitSettings `yaml:"rate_limit"`
}

// RateLimitSettings configures the progressive delays after failed logins.
type RateLimitSettings struct {
	Delays  []string `yaml:"delays"`
	Lockout string   `yaml:"lockout"`
}

// StoreSettings selects the account store. An empty Path keeps accounts in
// memory.
type StoreSettings struct {
	Path string `yaml:"path"`
}

// LoggingSettings contains logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Port: 8443,
		},
		SRP: SRPSettings{
			GroupBits: srp.DefaultGroupBits,
			Hash:      srp.DefaultHash,
			SaltBytes: 32,
		},
		Auth: AuthSettings{
			HandshakeTTL:  "2m",
			MaxHandshakes: 1024,
			SessionTTL:    "30m",
			MaxSessions:   256,
			RateLimit: RateLimitSettings{
				Delays:  []string{"1s", "2s", "5s"},
				Lockout: "60s",
			},
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration file at path on top of the defaults, applies
// environment overrides and validates the result. An empty path uses the
// defaults alone.
//
//nolint:gosec // G304: Config path is from command-line argument
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if listen := os.Getenv(EnvListen); listen != "" {
		host, portStr, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvListen, listen, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid %s port %q: %w", EnvListen, portStr, err)
		}
		c.Server.Address = host
		c.Server.Port = port
	}

	if path := os.Getenv(EnvStorePath); path != "" {
		c.Store.Path = path
	}

	return nil
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Address, strconv.Itoa(c.Server.Port))
}

// TLSEnabled reports whether the server should serve HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// GetHandshakeTTL parses and returns the handshake TTL.
func (c *Config) GetHandshakeTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.HandshakeTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid handshake_ttl: %w", err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("handshake_ttl must be at least 1 second")
	}
	return d, nil
}

// GetSessionTTL parses and returns the session TTL.
func (c *Config) GetSessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.SessionTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid session_ttl: %w", err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("session_ttl must be at least 1 minute")
	}
	return d, nil
}

// GetRateLimit parses the rate-limit delays and lockout.
func (c *Config) GetRateLimit() ([]time.Duration, time.Duration, error) {
	delays := make([]time.Duration, 0, len(c.Auth.RateLimit.Delays))
	for i, s := range c.Auth.RateLimit.Delays {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid rate_limit.delays[%d]: %w", i, err)
		}
		if d < 0 {
			return nil, 0, fmt.Errorf("rate_limit.delays[%d] must not be negative", i)
		}
		delays = append(delays, d)
	}

	lockout, err := time.ParseDuration(c.Auth.RateLimit.Lockout)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid rate_limit.lockout: %w", err)
	}
	if lockout <= 0 {
		return nil, 0, fmt.Errorf("rate_limit.lockout must be positive")
	}
	return delays, lockout, nil
}
