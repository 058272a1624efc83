package srp

import (
	"fmt"
	"math/big"
)

// Client is the client side of one SRP-6a exchange. A Client must not be
// used from more than one goroutine.
type Client struct {
	group    *Group
	identity []byte
	password []byte
	salt     []byte

	a *big.Int // ephemeral private value
	A *big.Int // ephemeral public value
	B *big.Int // server public value

	d     derived
	state State
}

// NewClient starts a client session for identity and password using the
// ephemeral private value secret (see GenerateSecret).
func NewClient(g *Group, identity, password, secret []byte) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil group", ErrUnknownGroup)
	}
	a := new(big.Int).SetBytes(secret)
	if err := checkSecret("a", a); err != nil {
		return nil, err
	}

	return &Client{
		group:    g,
		identity: clone(identity),
		password: clone(password),
		a:        a,
		state:    StateCreated,
	}, nil
}

// State returns the current session state.
func (c *Client) State() State {
	return c.state
}

// ComputeA returns the padded public value A = g^a % N. The value is computed
// on the first call and cached.
func (c *Client) ComputeA() ([]byte, error) {
	if c.state.terminal() {
		return nil, &StateError{Op: "ComputeA", State: c.state}
	}

	if c.A == nil {
		c.A = clientPublic(c.group, c.a)
		c.state = StatePublicComputed
	}
	return Pad(c.A, c.group.ByteLen())
}

// SetB accepts the server's salt and public value B and derives u, S, K, M1
// and M2. It may be called exactly once, after ComputeA. An invalid B aborts
// the session.
func (c *Client) SetB(salt, B []byte) error {
	if c.state != StatePublicComputed {
		return &StateError{Op: "SetB", State: c.state}
	}

	bInt := new(big.Int).SetBytes(B)
	S, err := clientSecret(c.group, salt, c.identity, c.password, c.a, c.A, bInt)
	if err != nil {
		c.fail()
		return err
	}

	d := derived{S: S}
	if d.u, err = computeU(c.group, c.A, bInt); err != nil {
		c.fail()
		return err
	}
	if d.k, err = sessionKey(c.group, S); err != nil {
		c.fail()
		return err
	}
	if d.m1, err = clientEvidence(c.group, c.A, bInt, S); err != nil {
		c.fail()
		return err
	}
	if d.m2, err = serverEvidence(c.group, c.A, d.m1, d.k); err != nil {
		c.fail()
		return err
	}

	c.salt = clone(salt)
	c.B = bInt
	c.d = d
	c.state = StateSecretComputed
	return nil
}

// ComputeM1 returns the client proof M1.
func (c *Client) ComputeM1() ([]byte, error) {
	if err := c.requireSecret("ComputeM1"); err != nil {
		return nil, err
	}
	return clone(c.d.m1), nil
}

// CheckM2 verifies the server proof. A mismatch means the server does not
// hold the verifier; the session fails and its secrets are scrubbed.
func (c *Client) CheckM2(m2 []byte) error {
	if c.state != StateSecretComputed {
		if c.state < StateSecretComputed {
			return fmt.Errorf("CheckM2: %w", ErrIncompleteProtocol)
		}
		return &StateError{Op: "CheckM2", State: c.state}
	}

	if !Equal(c.d.m2, m2) {
		c.fail()
		return ErrServerNotAuthentic
	}

	c.state = StateConfirmed
	return nil
}

// ComputeK returns the session key K = H(PAD(S)).
func (c *Client) ComputeK() ([]byte, error) {
	if err := c.requireSecret("ComputeK"); err != nil {
		return nil, err
	}
	return clone(c.d.k), nil
}

// Close scrubs all secret material. The session cannot be used afterwards.
func (c *Client) Close() {
	c.scrub()
	c.state = StateClosed
}

func (c *Client) requireSecret(op string) error {
	switch {
	case c.state.terminal():
		return &StateError{Op: op, State: c.state}
	case c.state < StateSecretComputed:
		return fmt.Errorf("%s: %w", op, ErrIncompleteProtocol)
	default:
		return nil
	}
}

func (c *Client) fail() {
	c.scrub()
	c.state = StateFailed
}

func (c *Client) scrub() {
	scrub(c.password)
	scrub(c.identity)
	scrub(c.salt)
	scrubInt(c.a)
	c.d.scrub()
	c.password, c.identity, c.salt, c.a = nil, nil, nil, nil
}
