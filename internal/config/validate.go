package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

// Validate performs comprehensive validation on the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateSRP(cfg); err != nil {
		return fmt.Errorf("srp validation failed: %w", err)
	}

	if err := validateAuth(cfg); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	if err := validateStore(cfg); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

func validateServer(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if strings.ContainsAny(cfg.Server.Address, " \t") {
		return fmt.Errorf("server.address contains invalid characters")
	}

	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}

	if cfg.Server.SelfSigned && cfg.Server.TLSCert == "" {
		return fmt.Errorf("server.self_signed requires server.tls_cert and server.tls_key")
	}

	for name, path := range map[string]string{"tls_cert": cfg.Server.TLSCert, "tls_key": cfg.Server.TLSKey} {
		if path == "" || cfg.Server.SelfSigned {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("server.%s: %w", name, err)
		}
	}

	return nil
}

func validateSRP(cfg *Config) error {
	if _, err := srp.Lookup(cfg.SRP.GroupBits, cfg.SRP.Hash); err != nil {
		return fmt.Errorf("srp.group_bits/srp.hash: %w", err)
	}

	if cfg.SRP.SaltBytes < 16 || cfg.SRP.SaltBytes > 1024 {
		return fmt.Errorf("srp.salt_bytes must be between 16 and 1024")
	}

	return nil
}

func validateAuth(cfg *Config) error {
	if _, err := cfg.GetHandshakeTTL(); err != nil {
		return err
	}

	if _, err := cfg.GetSessionTTL(); err != nil {
		return err
	}

	if cfg.Auth.MaxHandshakes <= 0 {
		return fmt.Errorf("auth.max_handshakes must be positive")
	}

	if cfg.Auth.MaxSessions <= 0 {
		return fmt.Errorf("auth.max_sessions must be positive")
	}

	if _, _, err := cfg.GetRateLimit(); err != nil {
		return err
	}

	return nil
}

func validateStore(cfg *Config) error {
	if cfg.Store.Path == "" {
		return nil
	}

	if !filepath.IsAbs(cfg.Store.Path) {
		return fmt.Errorf("store.path must be an absolute path")
	}

	if info, err := os.Stat(cfg.Store.Path); err == nil && info.IsDir() {
		return fmt.Errorf("store.path must be a file, not a directory: %s", cfg.Store.Path)
	}

	return nil
}

func validateLogging(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	if _, err := logging.ParseFormat(cfg.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}
