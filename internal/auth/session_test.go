package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fzdarsky/srpgate/internal/auth"
)

func newSessionManager(t *testing.T, ttl time.Duration, limit int) *auth.SessionManager {
	t.Helper()
	secret, err := auth.GenerateSessionSecret(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sm := auth.NewSessionManager(secret, ttl, limit)
	t.Cleanup(sm.Stop)
	return sm
}

func TestSessionManager_CreateAndValidate(t *testing.T) {
	sm := newSessionManager(t, 30*time.Minute, 0)

	session, err := sm.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(session.Token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		t.Errorf("expected token format 'id.signature', got %q", session.Token)
	}

	validated, err := sm.Validate(session.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validated.Identity != "alice" {
		t.Errorf("expected identity 'alice', got %q", validated.Identity)
	}
	if got := validated.ExpiresAt.Sub(validated.CreatedAt); got != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", got)
	}
}

func TestSessionManager_MinTTL(t *testing.T) {
	sm := newSessionManager(t, time.Second, 0)

	session, err := sm.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got := session.ExpiresAt.Sub(session.CreatedAt); got < auth.MinSessionTTL {
		t.Errorf("expected TTL >= %v, got %v", auth.MinSessionTTL, got)
	}
}

func TestSessionManager_UniqueTokens(t *testing.T) {
	sm := newSessionManager(t, 30*time.Minute, 0)

	s1, err := sm.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := sm.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if s1.Token == s2.Token {
		t.Error("expected unique tokens")
	}
}

func TestSessionManager_Limit(t *testing.T) {
	sm := newSessionManager(t, 30*time.Minute, 3)

	for i := range 3 {
		if _, err := sm.Create(context.Background(), "alice"); err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
	}

	_, err := sm.Create(context.Background(), "alice")
	if !errors.Is(err, auth.ErrSessionLimitExceeded) {
		t.Errorf("expected ErrSessionLimitExceeded, got %v", err)
	}
}

func TestSessionManager_ValidateErrors(t *testing.T) {
	sm := newSessionManager(t, 30*time.Minute, 0)

	session, err := sm.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	id, _, _ := strings.Cut(session.Token, ".")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", auth.ErrInvalidToken},
		{"no separator", "abcdef", auth.ErrInvalidToken},
		{"unknown", "abc.def", auth.ErrSessionNotFound},
		{"forged signature", id + ".forged", auth.ErrSessionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sm.Validate(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSessionManager_Revoke(t *testing.T) {
	sm := newSessionManager(t, 30*time.Minute, 0)

	session, err := sm.Create(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if err := sm.Revoke(session.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := sm.Validate(session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}
	if err := sm.Revoke(session.Token); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second revoke, got %v", err)
	}
	if sm.Count() != 0 {
		t.Errorf("expected 0 sessions, got %d", sm.Count())
	}
}

func TestSession_TimeUntilExpiry(t *testing.T) {
	s := &auth.Session{ExpiresAt: time.Now().Add(-time.Second)}
	if !s.IsExpired() || s.TimeUntilExpiry() != 0 {
		t.Error("expected expired session with zero remaining time")
	}

	s.ExpiresAt = time.Now().Add(time.Hour)
	if s.IsExpired() || s.TimeUntilExpiry() <= 0 {
		t.Error("expected live session with positive remaining time")
	}
}
