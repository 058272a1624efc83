package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// accountFile is the on-disk layout of a FileStore.
type accountFile struct {
	Accounts []accountRecord `yaml:"accounts"`
}

// accountRecord is one account as written to disk. Binary values are hex.
type accountRecord struct {
	Identity  string    `yaml:"identity"`
	Salt      string    `yaml:"salt"`
	Verifier  string    `yaml:"verifier"`
	GroupBits int       `yaml:"group_bits"`
	Hash      string    `yaml:"hash"`
	CreatedAt time.Time `yaml:"created_at"`
}

// FileStore persists accounts in a YAML file. The whole file is rewritten
// on every Store through a temporary file and rename, with 0600 permissions.
type FileStore struct {
	path string

	mu       sync.RWMutex
	accounts map[string]*Account
	order    []string
}

// OpenFileStore loads the account file at path. A missing file is treated as
// an empty store and created on the first Store.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:     filepath.Clean(path),
		accounts: make(map[string]*Account),
	}

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account file: %w", err)
	}

	var file accountFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse account file: %w", err)
	}

	for i, rec := range file.Accounts {
		account, err := rec.decode()
		if err != nil {
			return nil, fmt.Errorf("account %d in %s: %w", i, fs.path, err)
		}
		if _, dup := fs.accounts[account.Identity]; dup {
			return nil, fmt.Errorf("account file %s: duplicate identity %q", fs.path, account.Identity)
		}
		fs.accounts[account.Identity] = account
		fs.order = append(fs.order, account.Identity)
	}

	return fs, nil
}

// Path returns the file backing the store.
func (fs *FileStore) Path() string {
	return fs.path
}

// Fetch implements AccountStore.
func (fs *FileStore) Fetch(_ context.Context, identity string) (*Account, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	account, ok := fs.accounts[identity]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.clone(), nil
}

// Store implements AccountStore. The account is only visible to Fetch once
// the file has been written successfully.
func (fs *FileStore) Store(ctx context.Context, account *Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.accounts[account.Identity]; exists {
		return ErrAccountExists
	}

	file := accountFile{Accounts: make([]accountRecord, 0, len(fs.order)+1)}
	for _, id := range fs.order {
		file.Accounts = append(file.Accounts, encodeRecord(fs.accounts[id]))
	}
	file.Accounts = append(file.Accounts, encodeRecord(account))

	if err := fs.write(&file); err != nil {
		return err
	}

	fs.accounts[account.Identity] = account.clone()
	fs.order = append(fs.order, account.Identity)
	return nil
}

func (fs *FileStore) write(file *accountFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal account file: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create account directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".accounts-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary account file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set account file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write account file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync account file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close account file: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		return fmt.Errorf("failed to replace account file: %w", err)
	}
	return nil
}

func encodeRecord(a *Account) accountRecord {
	return accountRecord{
		Identity:  a.Identity,
		Salt:      hex.EncodeToString(a.Salt),
		Verifier:  hex.EncodeToString(a.Verifier),
		GroupBits: a.GroupBits,
		Hash:      a.Hash,
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func (r accountRecord) decode() (*Account, error) {
	if err := ValidateIdentity(r.Identity); err != nil {
		return nil, err
	}

	salt, err := hex.DecodeString(r.Salt)
	if err != nil {
		return nil, fmt.Errorf("salt must be hex: %w", err)
	}
	verifier, err := hex.DecodeString(r.Verifier)
	if err != nil {
		return nil, fmt.Errorf("verifier must be hex: %w", err)
	}
	if len(salt) == 0 || len(verifier) == 0 {
		return nil, fmt.Errorf("salt and verifier are required for %q", r.Identity)
	}
	if r.GroupBits == 0 || r.Hash == "" {
		return nil, fmt.Errorf("group_bits and hash are required for %q", r.Identity)
	}

	return &Account{
		Identity:  r.Identity,
		Salt:      salt,
		Verifier:  verifier,
		GroupBits: r.GroupBits,
		Hash:      r.Hash,
		CreatedAt: r.CreatedAt,
	}, nil
}
