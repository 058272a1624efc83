package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fzdarsky/srpgate/pkg/srp"
)

var (
	// ErrHandshakeNotFound is returned when a handshake is unknown, expired,
	// already consumed or belongs to a different identity.
	ErrHandshakeNotFound = errors.New("handshake not found")

	// ErrHandshakeLimit is returned when the table holds the maximum number
	// of in-flight handshakes.
	ErrHandshakeLimit = errors.New("too many pending handshakes")
)

const (
	// DefaultHandshakeTTL bounds the time between hello and confirm.
	DefaultHandshakeTTL = 2 * time.Minute

	// DefaultMaxHandshakes is the default capacity of the handshake table.
	DefaultMaxHandshakes = 1024

	// HandshakeIDBytes is the number of random bytes in a handshake ID (128 bits).
	HandshakeIDBytes = 16
)

type handshakeKey struct {
	identity string
	id       string
}

// handshake holds a server session between hello and confirm.
type handshake struct {
	server    *srp.Server
	expiresAt time.Time
}

// HandshakeTable keeps server sessions between the hello and confirm steps.
// Each entry is bound to the identity it was created for and can be taken
// exactly once. Expired entries are closed, which scrubs their secrets.
type HandshakeTable struct {
	mu      sync.Mutex
	entries map[handshakeKey]*handshake
	ttl     time.Duration
	limit   int
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHandshakeTable creates a table and starts its background sweeper.
// Non-positive ttl or limit fall back to the defaults.
func NewHandshakeTable(ttl time.Duration, limit int) *HandshakeTable {
	if ttl <= 0 {
		ttl = DefaultHandshakeTTL
	}
	if limit <= 0 {
		limit = DefaultMaxHandshakes
	}

	t := &HandshakeTable{
		entries: make(map[handshakeKey]*handshake),
		ttl:     ttl,
		limit:   limit,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go t.sweepLoop(sweepInterval(ttl))

	return t
}

// sweepInterval runs the sweeper at half the TTL, clamped to [1s, 1m].
func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	switch {
	case interval < time.Second:
		return time.Second
	case interval > time.Minute:
		return time.Minute
	default:
		return interval
	}
}

// Put stores server under a fresh handshake ID for identity.
func (t *HandshakeTable) Put(ctx context.Context, identity string, server *srp.Server) (string, error) {
	idBytes, err := srp.RandomBytes(ctx, nil, HandshakeIDBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate handshake ID: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(idBytes)

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= t.limit {
		t.sweepLocked()
	}
	if len(t.entries) >= t.limit {
		return "", ErrHandshakeLimit
	}

	t.entries[handshakeKey{identity: identity, id: id}] = &handshake{
		server:    server,
		expiresAt: t.now().Add(t.ttl),
	}
	return id, nil
}

// Take removes and returns the handshake stored under (identity, id).
func (t *HandshakeTable) Take(identity, id string) (*srp.Server, error) {
	key := handshakeKey{identity: identity, id: id}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return nil, ErrHandshakeNotFound
	}
	delete(t.entries, key)

	if t.now().After(entry.expiresAt) {
		entry.server.Close()
		return nil, fmt.Errorf("%w: expired", ErrHandshakeNotFound)
	}
	return entry.server, nil
}

// Count returns the number of pending handshakes, expired ones included
// until the next sweep.
func (t *HandshakeTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stop halts the sweeper and closes every pending handshake.
func (t *HandshakeTable) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)

		t.mu.Lock()
		defer t.mu.Unlock()
		for key, entry := range t.entries {
			entry.server.Close()
			delete(t.entries, key)
		}
	})
}

func (t *HandshakeTable) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweep()
		case <-t.stopCh:
			return
		}
	}
}

func (t *HandshakeTable) sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

// sweepLocked closes and removes expired handshakes. Caller holds t.mu.
func (t *HandshakeTable) sweepLocked() int {
	now := t.now()
	removed := 0
	for key, entry := range t.entries {
		if now.After(entry.expiresAt) {
			entry.server.Close()
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}
