// Package auth implements the server side of srpgate: account storage, the
// in-flight handshake table, the create/hello/confirm authenticator and the
// session tokens issued after a successful login.
package auth

//go:generate go tool mockgen -destination=mock_store.go -package=auth . AccountStore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrAccountNotFound is returned when no account exists for an identity.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an identity that is already registered.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidIdentity is returned for empty, oversized or non-UTF-8 identities.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// MaxIdentityLength bounds the identity in bytes.
const MaxIdentityLength = 256

// Account is the persisted record for one identity. The password is never
// part of it; only the salt and verifier derived from it are kept, together
// with the parameters they were computed with.
type Account struct {
	Identity  string
	Salt      []byte
	Verifier  []byte
	GroupBits int
	Hash      string
	CreatedAt time.Time
}

// AccountStore persists accounts. Implementations must be safe for
// concurrent use.
type AccountStore interface {
	// Fetch returns the account for identity or ErrAccountNotFound.
	Fetch(ctx context.Context, identity string) (*Account, error)

	// Store saves a new account. It returns ErrAccountExists if the identity
	// is already registered.
	Store(ctx context.Context, account *Account) error
}

// ValidateIdentity checks that identity is usable as an SRP username.
func ValidateIdentity(identity string) error {
	switch {
	case strings.TrimSpace(identity) == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentity)
	case len(identity) > MaxIdentityLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidIdentity, MaxIdentityLength)
	case !utf8.ValidString(identity):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidIdentity)
	case strings.ContainsRune(identity, ':'):
		// x = H(salt | H(I | ":" | P)) would be ambiguous.
		return fmt.Errorf("%w: must not contain ':'", ErrInvalidIdentity)
	}
	return nil
}

func (a *Account) clone() *Account {
	c := *a
	c.Salt = append([]byte(nil), a.Salt...)
	c.Verifier = append([]byte(nil), a.Verifier...)
	return &c
}
