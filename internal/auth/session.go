package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fzdarsky/srpgate/pkg/srp"
)

var (
	// ErrSessionNotFound is returned when a session token is not known.
	ErrSessionNotFound = errors.New("session token not found")

	// ErrSessionExpired is returned when a session token has expired.
	ErrSessionExpired = errors.New("session token expired")

	// ErrSessionLimitExceeded is returned when the maximum number of
	// concurrent sessions is reached.
	ErrSessionLimitExceeded = errors.New("session limit exceeded")

	// ErrInvalidToken is returned for malformed or forged tokens.
	ErrInvalidToken = errors.New("invalid session token")
)

const (
	// DefaultSessionTTL is the default session token lifetime.
	DefaultSessionTTL = 30 * time.Minute

	// MinSessionTTL is the minimum allowed session TTL.
	MinSessionTTL = 1 * time.Minute

	// DefaultMaxSessions is the default number of concurrent sessions.
	DefaultMaxSessions = 256

	// TokenIDBytes is the number of random bytes in a token ID (256 bits).
	TokenIDBytes = 32

	// CleanupInterval is how often expired sessions are removed.
	CleanupInterval = 1 * time.Minute
)

// Session is an authenticated login, issued after the client proof was
// accepted.
type Session struct {
	Token     string
	Identity  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// TimeUntilExpiry returns the remaining lifetime, or 0 once expired.
func (s *Session) TimeUntilExpiry() time.Duration {
	if s.IsExpired() {
		return 0
	}
	return time.Until(s.ExpiresAt)
}

// SessionManager issues and validates bearer tokens of the form
// "<token_id>.<signature>", where signature = HMAC-SHA256(token_id | identity).
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	secret   []byte
	ttl      time.Duration
	limit    int

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a session manager signing with secret. A ttl
// below MinSessionTTL is raised to it; a non-positive limit uses
// DefaultMaxSessions.
func NewSessionManager(secret []byte, ttl time.Duration, limit int) *SessionManager {
	if ttl < MinSessionTTL {
		ttl = MinSessionTTL
	}
	if limit <= 0 {
		limit = DefaultMaxSessions
	}

	sm := &SessionManager{
		sessions: make(map[string]*Session),
		secret:   secret,
		ttl:      ttl,
		limit:    limit,
		stopCh:   make(chan struct{}),
	}

	go sm.cleanupLoop()

	return sm
}

// Create issues a new session for identity.
func (sm *SessionManager) Create(ctx context.Context, identity string) (*Session, error) {
	idBytes, err := srp.RandomBytes(ctx, nil, TokenIDBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token ID: %w", err)
	}
	tokenID := base64.RawURLEncoding.EncodeToString(idBytes)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.limit {
		sm.removeExpiredLocked()
	}
	if len(sm.sessions) >= sm.limit {
		return nil, ErrSessionLimitExceeded
	}

	now := time.Now()
	session := &Session{
		Token:     tokenID + "." + sm.sign(tokenID, identity),
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}
	sm.sessions[session.Token] = session

	copied := *session
	return &copied, nil
}

// Validate checks token and returns its session.
func (sm *SessionManager) Validate(token string) (*Session, error) {
	tokenID, signature, ok := strings.Cut(token, ".")
	if !ok || tokenID == "" || signature == "" {
		return nil, ErrInvalidToken
	}

	sm.mu.RLock()
	session, exists := sm.sessions[token]
	sm.mu.RUnlock()

	if !exists {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	if !hmac.Equal([]byte(signature), []byte(sm.sign(tokenID, session.Identity))) {
		return nil, ErrInvalidToken
	}

	copied := *session
	return &copied, nil
}

// Revoke removes a session, e.g. on logout.
func (sm *SessionManager) Revoke(token string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, exists := sm.sessions[token]; !exists {
		return ErrSessionNotFound
	}
	delete(sm.sessions, token)
	return nil
}

// Count returns the number of stored sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Stop stops the background cleanup goroutine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stopCh) })
}

func (sm *SessionManager) sign(tokenID, identity string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(tokenID))
	h.Write([]byte{0})
	h.Write([]byte(identity))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.mu.Lock()
			sm.removeExpiredLocked()
			sm.mu.Unlock()
		case <-sm.stopCh:
			return
		}
	}
}

func (sm *SessionManager) removeExpiredLocked() {
	now := time.Now()
	for token, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, token)
		}
	}
}

// GenerateSessionSecret returns a fresh 32-byte HMAC key. It should be
// called once at service startup.
func GenerateSessionSecret(ctx context.Context) ([]byte, error) {
	secret, err := srp.RandomBytes(ctx, nil, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}
