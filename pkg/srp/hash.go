package srp

import (
	"crypto"
	// Register the SHA-1 and SHA-2 implementations with crypto.Hash.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"

	// Registers BLAKE2b-256/384/512 with crypto.Hash.
	_ "golang.org/x/crypto/blake2b"
)

// hashNames maps the persisted algorithm identifier to its crypto.Hash.
var hashNames = map[string]crypto.Hash{
	"sha1":        crypto.SHA1,
	"sha256":      crypto.SHA256,
	"sha384":      crypto.SHA384,
	"sha512":      crypto.SHA512,
	"blake2b-256": crypto.BLAKE2b_256,
	"blake2b-512": crypto.BLAKE2b_512,
}

// ParseHash returns the hash function registered under name. Names are
// case-insensitive and dashes in the SHA family are tolerated ("SHA-256").
func ParseHash(name string) (crypto.Hash, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(key, "sha-") {
		key = "sha" + key[len("sha-"):]
	}

	h, ok := hashNames[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHash, name)
	}
	if !h.Available() {
		return 0, fmt.Errorf("%w: %q is not linked into the binary", ErrUnknownHash, name)
	}
	return h, nil
}

// HashName returns the registry identifier of h, or h.String() for hashes
// outside the registry.
func HashName(h crypto.Hash) string {
	for name, candidate := range hashNames {
		if candidate == h {
			return name
		}
	}
	return h.String()
}

// SupportedHashes returns the registered algorithm identifiers.
func SupportedHashes() []string {
	return []string{"sha1", "sha256", "sha384", "sha512", "blake2b-256", "blake2b-512"}
}

// digest hashes the concatenation of parts with h.
func digest(h crypto.Hash, parts ...[]byte) []byte {
	hash := h.New()
	for _, p := range parts {
		hash.Write(p)
	}
	return hash.Sum(nil)
}
