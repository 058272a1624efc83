package srp

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

// SecretBytes is the size of generated ephemeral private values (256 bits).
const SecretBytes = 32

// RandomBytes reads n bytes from r, or from crypto/rand when r is nil. The
// read runs in its own goroutine so a blocking entropy source can be
// abandoned through ctx. An all-zero result is rejected.
func RandomBytes(ctx context.Context, r io.Reader, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: requested %d bytes", ErrWeakRandom, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("random read cancelled: %w", err)
	}
	if r == nil {
		r = rand.Reader
	}

	type result struct {
		buf []byte
		err error
	}
	done := make(chan result, 1)

	go func() {
		buf := make([]byte, n)
		_, err := io.ReadFull(r, buf)
		done <- result{buf: buf, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("random read cancelled: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to read random bytes: %w", res.err)
		}
		if allZero(res.buf) {
			return nil, ErrWeakRandom
		}
		return res.buf, nil
	}
}

// GenerateSecret returns a fresh ephemeral private value. The top bit is
// forced so the value always has exactly MinSecretBits bits.
func GenerateSecret(ctx context.Context, r io.Reader) ([]byte, error) {
	buf, err := RandomBytes(ctx, r, SecretBytes)
	if err != nil {
		return nil, err
	}
	buf[0] |= 0x80
	return buf, nil
}

// GenerateSalt returns a fresh n-byte account salt.
func GenerateSalt(ctx context.Context, r io.Reader, n int) ([]byte, error) {
	return RandomBytes(ctx, r, n)
}

func allZero(b []byte) bool {
	var acc byte
	for _, c := range b {
		acc |= c
	}
	return acc == 0
}

// scrub zeroes b in place.
func scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
