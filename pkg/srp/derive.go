package srp

import (
	"fmt"
	"math/big"
)

// computeX returns x = H(salt | H(identity | ":" | password)).
func computeX(g *Group, salt, identity, password []byte) *big.Int {
	inner := digest(g.Hash, identity, []byte(":"), password)
	return new(big.Int).SetBytes(digest(g.Hash, salt, inner))
}

// computeU returns u = H(PAD(A) | PAD(B)). A zero u would let the verifier
// drop out of the server's secret, so it is rejected.
func computeU(g *Group, A, B *big.Int) (*big.Int, error) {
	aBuf, err := Pad(A, g.ByteLen())
	if err != nil {
		return nil, fmt.Errorf("pad A: %w", err)
	}
	bBuf, err := Pad(B, g.ByteLen())
	if err != nil {
		return nil, fmt.Errorf("pad B: %w", err)
	}

	u := new(big.Int).SetBytes(digest(g.Hash, aBuf, bBuf))
	if u.Sign() == 0 {
		return nil, fmt.Errorf("%w: scrambling parameter is zero", ErrInvalidPublicValue)
	}
	return u, nil
}

// sessionKey returns K = H(PAD(S)).
func sessionKey(g *Group, S *big.Int) ([]byte, error) {
	sBuf, err := Pad(S, g.ByteLen())
	if err != nil {
		return nil, fmt.Errorf("pad S: %w", err)
	}
	return digest(g.Hash, sBuf), nil
}

// clientEvidence returns M1 = H(PAD(A) | PAD(B) | PAD(S)).
func clientEvidence(g *Group, A, B, S *big.Int) ([]byte, error) {
	l := g.ByteLen()
	aBuf, err := Pad(A, l)
	if err != nil {
		return nil, fmt.Errorf("pad A: %w", err)
	}
	bBuf, err := Pad(B, l)
	if err != nil {
		return nil, fmt.Errorf("pad B: %w", err)
	}
	sBuf, err := Pad(S, l)
	if err != nil {
		return nil, fmt.Errorf("pad S: %w", err)
	}
	return digest(g.Hash, aBuf, bBuf, sBuf), nil
}

// serverEvidence returns M2 = H(PAD(A) | M1 | K).
func serverEvidence(g *Group, A *big.Int, m1, k []byte) ([]byte, error) {
	aBuf, err := Pad(A, g.ByteLen())
	if err != nil {
		return nil, fmt.Errorf("pad A: %w", err)
	}
	return digest(g.Hash, aBuf, m1, k), nil
}

// ComputeX returns the private exponent x = H(salt | H(identity | ":" | password)).
func ComputeX(g *Group, salt, identity, password []byte) []byte {
	return computeX(g, salt, identity, password).Bytes()
}

// ComputeU returns the scrambling parameter u = H(PAD(A) | PAD(B)).
func ComputeU(g *Group, A, B []byte) ([]byte, error) {
	u, err := computeU(g, new(big.Int).SetBytes(A), new(big.Int).SetBytes(B))
	if err != nil {
		return nil, err
	}
	return u.Bytes(), nil
}

// SessionKey returns K = H(PAD(S)).
func SessionKey(g *Group, S []byte) ([]byte, error) {
	return sessionKey(g, new(big.Int).SetBytes(S))
}

// ClientEvidence returns M1 = H(PAD(A) | PAD(B) | PAD(S)).
func ClientEvidence(g *Group, A, B, S []byte) ([]byte, error) {
	return clientEvidence(g, new(big.Int).SetBytes(A), new(big.Int).SetBytes(B), new(big.Int).SetBytes(S))
}

// ServerEvidence returns M2 = H(PAD(A) | M1 | K).
func ServerEvidence(g *Group, A, m1, k []byte) ([]byte, error) {
	return serverEvidence(g, new(big.Int).SetBytes(A), m1, k)
}
