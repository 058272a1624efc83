package srp

import (
	"fmt"
	"math/big"
)

// Pad returns n as a big-endian buffer of exactly length bytes, left-padded
// with zeros. It fails when n is negative or does not fit in length bytes.
func Pad(n *big.Int, length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: non-positive length %d", ErrPadding, length)
	}
	if n == nil || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: value must be a non-negative integer", ErrPadding)
	}

	have := (n.BitLen() + 7) / 8
	if have > length {
		return nil, &PaddingError{Have: have, Want: length}
	}

	return n.FillBytes(make([]byte, length)), nil
}

// PadBytes left-pads a big-endian buffer to length bytes. Leading zero bytes
// beyond length are dropped, so PadBytes(PadBytes(b, l), l) == PadBytes(b, l).
func PadBytes(b []byte, length int) ([]byte, error) {
	return Pad(new(big.Int).SetBytes(b), length)
}

// mustPad pads values that are already reduced mod N. A failure here means
// the caller broke that contract.
func mustPad(n *big.Int, length int) []byte {
	buf, err := Pad(n, length)
	if err != nil {
		panic(fmt.Sprintf("srp: %v", err))
	}
	return buf
}
