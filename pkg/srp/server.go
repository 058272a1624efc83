package srp

import (
	"fmt"
	"math/big"
)

// Server is the server side of one SRP-6a exchange for a single account. A
// Server must not be used from more than one goroutine; concurrent logins
// use separate Server values.
type Server struct {
	group *Group

	v *big.Int // stored verifier
	b *big.Int // ephemeral private value
	B *big.Int // ephemeral public value
	A *big.Int // client public value

	d     derived
	state State
}

// NewServer starts a server session for the stored verifier using the
// ephemeral private value secret (see GenerateSecret).
func NewServer(g *Group, verifier, secret []byte) (*Server, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil group", ErrUnknownGroup)
	}
	v := new(big.Int).SetBytes(verifier)
	if v.Sign() == 0 || v.Cmp(g.N) >= 0 {
		return nil, fmt.Errorf("verifier out of range for %s", g)
	}
	b := new(big.Int).SetBytes(secret)
	if err := checkSecret("b", b); err != nil {
		return nil, err
	}

	return &Server{
		group: g,
		v:     v,
		b:     b,
		state: StateCreated,
	}, nil
}

// Group returns the parameters this session runs with.
func (s *Server) Group() *Group {
	return s.group
}

// State returns the current session state.
func (s *Server) State() State {
	return s.state
}

// ComputeB returns the padded public value B = (k*v + g^b) % N, computed on
// the first call and cached.
func (s *Server) ComputeB() ([]byte, error) {
	if s.state.terminal() {
		return nil, &StateError{Op: "ComputeB", State: s.state}
	}

	if s.B == nil {
		B := serverPublic(s.group, s.v, s.b)
		if err := validatePublic(s.group, B); err != nil {
			s.fail()
			return nil, fmt.Errorf("%w: B %% N == 0, regenerate b", ErrWeakRandom)
		}
		s.B = B
		s.state = StatePublicComputed
	}
	return Pad(s.B, s.group.ByteLen())
}

// SetA accepts the client's public value A and derives u, S, K, M1 and M2.
// It may be called exactly once, after ComputeB. An invalid A aborts the
// session without computing a secret.
func (s *Server) SetA(A []byte) error {
	if s.state != StatePublicComputed {
		return &StateError{Op: "SetA", State: s.state}
	}

	aInt := new(big.Int).SetBytes(A)
	S, err := serverSecret(s.group, s.v, aInt, s.b, s.B)
	if err != nil {
		s.fail()
		return err
	}

	d := derived{S: S}
	if d.u, err = computeU(s.group, aInt, s.B); err != nil {
		s.fail()
		return err
	}
	if d.k, err = sessionKey(s.group, S); err != nil {
		s.fail()
		return err
	}
	if d.m1, err = clientEvidence(s.group, aInt, s.B, S); err != nil {
		s.fail()
		return err
	}
	if d.m2, err = serverEvidence(s.group, aInt, d.m1, d.k); err != nil {
		s.fail()
		return err
	}

	s.A = aInt
	s.d = d
	s.state = StateSecretComputed
	return nil
}

// CheckM1 verifies the client proof and returns the server proof M2. On a
// mismatch the session fails, its secrets are scrubbed and M2 is never
// released.
func (s *Server) CheckM1(m1 []byte) ([]byte, error) {
	if s.state != StateSecretComputed {
		if s.state < StateSecretComputed {
			return nil, fmt.Errorf("CheckM1: %w", ErrIncompleteProtocol)
		}
		return nil, &StateError{Op: "CheckM1", State: s.state}
	}

	if !Equal(s.d.m1, m1) {
		s.fail()
		return nil, ErrClientAuthenticationFailed
	}

	s.state = StateConfirmed
	return clone(s.d.m2), nil
}

// ComputeK returns the session key K = H(PAD(S)).
func (s *Server) ComputeK() ([]byte, error) {
	switch {
	case s.state.terminal():
		return nil, &StateError{Op: "ComputeK", State: s.state}
	case s.state < StateSecretComputed:
		return nil, fmt.Errorf("ComputeK: %w", ErrIncompleteProtocol)
	}
	return clone(s.d.k), nil
}

// Close scrubs all secret material. The session cannot be used afterwards.
func (s *Server) Close() {
	s.scrub()
	s.state = StateClosed
}

func (s *Server) fail() {
	s.scrub()
	s.state = StateFailed
}

func (s *Server) scrub() {
	scrubInt(s.b)
	scrubInt(s.v)
	s.d.scrub()
	s.b, s.v = nil, nil
}
