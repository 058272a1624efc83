// Package session provides session token storage for the srp CLI tool.
package session

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fzdarsky/srpgate/internal/cli/config"
)

const (
	tokenFileMode = 0o600 // Owner read/write only
)

// Token is a cached login for one server.
type Token struct {
	Identity  string    `yaml:"identity"`
	Token     string    `yaml:"token"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// Expired reports whether the token's lifetime has passed at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Store manages session token persistence in the OS cache directory.
type Store struct {
	dir string
}

// NewStore creates a new session token store in the OS-specific cache directory.
func NewStore() (*Store, error) {
	cacheDir, err := config.UserCacheDir()
	if err != nil {
		return nil, err
	}

	if err := config.EnsureDir(cacheDir); err != nil {
		return nil, err
	}

	return &Store{dir: cacheDir}, nil
}

// Save stores the token for server (host:port) with 0600 permissions.
func (s *Store) Save(server string, token *Token) error {
	data, err := yaml.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode session token: %w", err)
	}

	if err := os.WriteFile(s.tokenFilename(server), data, tokenFileMode); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}

	return nil
}

// Load returns the token saved for server, or nil if none exists.
func (s *Store) Load(server string) (*Token, error) {
	filename := s.tokenFilename(server)

	data, err := os.ReadFile(filename) // #nosec G304 - filename is generated from hash of server
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session token: %w", err)
	}

	var token Token
	if err := yaml.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse session token file %s: %w", filename, err)
	}
	if token.Token == "" {
		return nil, nil
	}

	return &token, nil
}

// Delete deletes the token saved for server.
func (s *Store) Delete(server string) error {
	if err := os.Remove(s.tokenFilename(server)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete session token: %w", err)
	}

	return nil
}

// tokenFilename returns session-<first 16 hex chars of SHA-256(server)>.token
// inside the store directory.
func (s *Store) tokenFilename(server string) string {
	hash := sha256.Sum256([]byte(server))
	return filepath.Join(s.dir, fmt.Sprintf("session-%x.token", hash[:8]))
}
