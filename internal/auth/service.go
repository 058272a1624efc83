package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fzdarsky/srpgate/internal/logging"
	"github.com/fzdarsky/srpgate/pkg/srp"
)

var (
	// ErrEmptyPassword is returned when an account is created without a password.
	ErrEmptyPassword = errors.New("password must not be empty")

	// ErrParameterMismatch is returned by Hello when the client computed A
	// for a different group or hash than the account uses.
	ErrParameterMismatch = errors.New("SRP parameters do not match account")
)

// ParameterMismatchError carries the parameters the account actually uses,
// so the client can restart the login with them.
type ParameterMismatchError struct {
	GroupBits int
	Hash      string
}

func (e *ParameterMismatchError) Error() string {
	return fmt.Sprintf("%s: account uses %d bits with %s", ErrParameterMismatch, e.GroupBits, e.Hash)
}

// Unwrap lets errors.Is match ErrParameterMismatch.
func (e *ParameterMismatchError) Unwrap() error {
	return ErrParameterMismatch
}

// DefaultSaltBytes is the salt length used when none is configured.
const DefaultSaltBytes = 32

// Options configures a Service.
type Options struct {
	// GroupBits and Hash select the parameters for new accounts. Existing
	// accounts keep the parameters they were created with.
	GroupBits int
	Hash      string
	SaltBytes int

	HandshakeTTL  time.Duration
	MaxHandshakes int

	// Random overrides the entropy source; nil uses crypto/rand.
	Random io.Reader
}

func (o *Options) applyDefaults() {
	if o.GroupBits == 0 {
		o.GroupBits = srp.DefaultGroupBits
	}
	if o.Hash == "" {
		o.Hash = srp.DefaultHash
	}
	if o.SaltBytes == 0 {
		o.SaltBytes = DefaultSaltBytes
	}
}

// CreateRequest registers a new account. GroupBits and Hash are optional
// per-account overrides of the service defaults.
type CreateRequest struct {
	Identity  string
	Password  []byte
	GroupBits int
	Hash      string
}

// HelloRequest starts a login. GroupBits and Hash are optional and state
// the parameters A was computed with; zero values skip the check.
type HelloRequest struct {
	Identity  string
	A         []byte
	GroupBits int
	Hash      string
}

// HelloResult is returned to the client after the hello step.
type HelloResult struct {
	HandshakeID string
	Salt        []byte
	B           []byte
	GroupBits   int
	Hash        string
}

// ConfirmResult is returned after the client proof was accepted.
type ConfirmResult struct {
	M2      []byte
	Session *Session
}

// Service runs the create, hello and confirm steps of an SRP-6a login
// against an AccountStore.
type Service struct {
	store      AccountStore
	handshakes *HandshakeTable
	sessions   *SessionManager
	logger     *logging.Logger
	opts       Options
}

// NewService creates a Service. The configured group and hash are checked
// up front so a bad configuration fails at startup.
func NewService(store AccountStore, sessions *SessionManager, logger *logging.Logger, opts Options) (*Service, error) {
	opts.applyDefaults()

	group, err := srp.Shared(opts.GroupBits, opts.Hash)
	if err != nil {
		return nil, fmt.Errorf("invalid SRP parameters: %w", err)
	}
	opts.Hash = group.HashName()
	if opts.SaltBytes < 16 {
		return nil, fmt.Errorf("salt length must be at least 16 bytes, got %d", opts.SaltBytes)
	}

	return &Service{
		store:      store,
		handshakes: NewHandshakeTable(opts.HandshakeTTL, opts.MaxHandshakes),
		sessions:   sessions,
		logger:     logger,
		opts:       opts,
	}, nil
}

// Create registers an account. Only the salt and verifier are stored; the
// password is not retained.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Account, error) {
	if err := ValidateIdentity(req.Identity); err != nil {
		return nil, err
	}
	if len(req.Password) == 0 {
		return nil, ErrEmptyPassword
	}

	bits, hash := req.GroupBits, req.Hash
	if bits == 0 {
		bits = s.opts.GroupBits
	}
	if hash == "" {
		hash = s.opts.Hash
	}
	group, err := srp.Shared(bits, hash)
	if err != nil {
		return nil, err
	}

	switch _, err := s.store.Fetch(ctx, req.Identity); {
	case err == nil:
		return nil, ErrAccountExists
	case !errors.Is(err, ErrAccountNotFound):
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	salt, err := srp.GenerateSalt(ctx, s.opts.Random, s.opts.SaltBytes)
	if err != nil {
		return nil, err
	}
	verifier, err := srp.Verifier(group, salt, []byte(req.Identity), req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to compute verifier: %w", err)
	}

	account := &Account{
		Identity:  req.Identity,
		Salt:      salt,
		Verifier:  verifier,
		GroupBits: group.Bits,
		Hash:      group.HashName(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Store(ctx, account); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store account: %w", err)
	}

	s.logger.Info("account created", map[string]any{
		"identity": req.Identity,
		"group":    group.String(),
	})
	return account, nil
}

// Hello accepts the client public value A for an identity, starts a server
// session and parks it in the handshake table until Confirm.
func (s *Service) Hello(ctx context.Context, req HelloRequest) (*HelloResult, error) {
	identity := req.Identity
	account, err := s.store.Fetch(ctx, identity)
	if err != nil {
		return nil, err
	}

	group, err := srp.Shared(account.GroupBits, account.Hash)
	if err != nil {
		return nil, fmt.Errorf("account %q has unusable parameters: %w", identity, err)
	}
	if !matchesParameters(group, req.GroupBits, req.Hash) {
		return nil, &ParameterMismatchError{GroupBits: group.Bits, Hash: group.HashName()}
	}

	secret, err := srp.GenerateSecret(ctx, s.opts.Random)
	if err != nil {
		return nil, err
	}
	server, err := srp.NewServer(group, account.Verifier, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to start server session: %w", err)
	}

	B, err := server.ComputeB()
	if err != nil {
		server.Close()
		return nil, err
	}
	if err := server.SetA(req.A); err != nil {
		return nil, err
	}

	id, err := s.handshakes.Put(ctx, identity, server)
	if err != nil {
		server.Close()
		return nil, err
	}

	return &HelloResult{
		HandshakeID: id,
		Salt:        account.Salt,
		B:           B,
		GroupBits:   group.Bits,
		Hash:        group.HashName(),
	}, nil
}

// matchesParameters reports whether the client's stated parameters, if
// any, are those of group.
func matchesParameters(group *srp.Group, bits int, hash string) bool {
	if bits != 0 && bits != group.Bits {
		return false
	}
	if hash == "" {
		return true
	}
	h, err := srp.ParseHash(hash)
	return err == nil && h == group.Hash
}

// Confirm checks the client proof M1 for a pending handshake. The handshake
// is consumed whatever the outcome. On success the server proof M2 and a new
// session are returned; on failure no M2 is released.
func (s *Service) Confirm(ctx context.Context, identity, handshakeID string, m1 []byte) (*ConfirmResult, error) {
	server, err := s.handshakes.Take(identity, handshakeID)
	if err != nil {
		return nil, err
	}
	defer server.Close()

	m2, err := server.CheckM1(m1)
	if err != nil {
		s.logger.Warn("client proof rejected", map[string]any{
			"identity": identity,
		})
		return nil, err
	}

	session, err := s.sessions.Create(ctx, identity)
	if err != nil {
		return nil, err
	}

	return &ConfirmResult{M2: m2, Session: session}, nil
}

// Parameters returns the group size and hash used for new accounts.
func (s *Service) Parameters() (int, string) {
	return s.opts.GroupBits, s.opts.Hash
}

// Sessions returns the session manager tokens are issued from.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// PendingHandshakes returns the number of handshakes awaiting confirm.
func (s *Service) PendingHandshakes() int {
	return s.handshakes.Count()
}

// Stop releases background resources and scrubs pending handshakes.
func (s *Service) Stop() {
	s.handshakes.Stop()
}
