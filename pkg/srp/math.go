package srp

import (
	"fmt"
	"math/big"
)

// MinSecretBits is the recommended minimum size of an ephemeral private value.
const MinSecretBits = 256

// validatePublic checks 1 <= X <= N-1. A public value congruent to 0 mod N
// would force a secret the attacker knows in advance.
func validatePublic(g *Group, X *big.Int) error {
	if X.Sign() <= 0 || X.Cmp(g.N) >= 0 {
		return ErrInvalidPublicValue
	}
	return nil
}

func checkSecret(name string, s *big.Int) error {
	if s.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be non-zero", ErrWeakRandom, name)
	}
	return nil
}

func verifier(g *Group, salt, identity, password []byte) *big.Int {
	x := computeX(g, salt, identity, password)
	return new(big.Int).Exp(g.G, x, g.N)
}

func clientPublic(g *Group, a *big.Int) *big.Int {
	if a.BitLen() < MinSecretBits {
		logger().Warn("client ephemeral secret below recommended size", map[string]any{
			"bits":        a.BitLen(),
			"recommended": MinSecretBits,
		})
	}
	return new(big.Int).Exp(g.G, a, g.N)
}

func serverPublic(g *Group, v, b *big.Int) *big.Int {
	// B = (k*v + g^b) % N
	kv := new(big.Int).Mul(g.multiplier(), v)
	gb := new(big.Int).Exp(g.G, b, g.N)
	B := kv.Add(kv, gb)
	return B.Mod(B, g.N)
}

func clientSecret(g *Group, salt, identity, password []byte, a, A, B *big.Int) (*big.Int, error) {
	if err := validatePublic(g, B); err != nil {
		return nil, fmt.Errorf("server public value B: %w", err)
	}

	u, err := computeU(g, A, B)
	if err != nil {
		return nil, err
	}
	x := computeX(g, salt, identity, password)

	// S = (B - k*g^x)^(a + u*x) % N
	kgx := new(big.Int).Exp(g.G, x, g.N)
	kgx.Mul(kgx, g.multiplier())
	kgx.Mod(kgx, g.N)

	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, g.N)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)

	return base.Exp(base, exp, g.N), nil
}

func serverSecret(g *Group, v, A, b, B *big.Int) (*big.Int, error) {
	if err := validatePublic(g, A); err != nil {
		return nil, fmt.Errorf("client public value A: %w", err)
	}

	u, err := computeU(g, A, B)
	if err != nil {
		return nil, err
	}

	// S = (A * v^u % N)^b % N
	base := new(big.Int).Exp(v, u, g.N)
	base.Mul(base, A)
	base.Mod(base, g.N)

	return base.Exp(base, b, g.N), nil
}

// Verifier computes the padded verifier v = g^x % N for an account. It is the
// only place a password is consumed on the side that persists state.
func Verifier(g *Group, salt, identity, password []byte) ([]byte, error) {
	return Pad(verifier(g, salt, identity, password), g.ByteLen())
}

// ClientPublic computes the padded client public value A = g^a % N.
func ClientPublic(g *Group, a []byte) ([]byte, error) {
	secret := new(big.Int).SetBytes(a)
	if err := checkSecret("a", secret); err != nil {
		return nil, err
	}
	return Pad(clientPublic(g, secret), g.ByteLen())
}

// ServerPublic computes the padded server public value B = (k*v + g^b) % N.
func ServerPublic(g *Group, v, b []byte) ([]byte, error) {
	secret := new(big.Int).SetBytes(b)
	if err := checkSecret("b", secret); err != nil {
		return nil, err
	}
	return Pad(serverPublic(g, new(big.Int).SetBytes(v), secret), g.ByteLen())
}

// ClientPremasterSecret computes the client's padded premaster secret
// S = (B - k*g^x)^(a + u*x) % N after checking 1 <= B <= N-1.
func ClientPremasterSecret(g *Group, salt, identity, password, a, B []byte) ([]byte, error) {
	secret := new(big.Int).SetBytes(a)
	if err := checkSecret("a", secret); err != nil {
		return nil, err
	}
	A := new(big.Int).Exp(g.G, secret, g.N)

	S, err := clientSecret(g, salt, identity, password, secret, A, new(big.Int).SetBytes(B))
	if err != nil {
		return nil, err
	}
	return Pad(S, g.ByteLen())
}

// ServerPremasterSecret computes the server's padded premaster secret
// S = (A * v^u % N)^b % N after checking 1 <= A <= N-1.
func ServerPremasterSecret(g *Group, v, A, b []byte) ([]byte, error) {
	secret := new(big.Int).SetBytes(b)
	if err := checkSecret("b", secret); err != nil {
		return nil, err
	}
	vInt := new(big.Int).SetBytes(v)
	B := serverPublic(g, vInt, secret)

	S, err := serverSecret(g, vInt, new(big.Int).SetBytes(A), secret, B)
	if err != nil {
		return nil, err
	}
	return Pad(S, g.ByteLen())
}
