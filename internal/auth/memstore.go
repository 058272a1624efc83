package auth

import (
	"context"
	"sync"
)

// MemoryStore keeps accounts in process memory. It is meant for development
// and tests; accounts are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

// Fetch implements AccountStore.
func (m *MemoryStore) Fetch(_ context.Context, identity string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[identity]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.clone(), nil
}

// Store implements AccountStore.
func (m *MemoryStore) Store(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.Identity]; exists {
		return ErrAccountExists
	}
	m.accounts[account.Identity] = account.clone()
	return nil
}

// Len returns the number of stored accounts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
