package srp

// Equal reports whether a and b hold the same bytes. Lengths are not secret
// and are compared first; equal-length inputs are always scanned in full so
// the position of the first difference does not show in the timing.
func Equal(a, b []byte) bool {
	eq, _ := equal(a, b)
	return eq
}

// equal also returns the number of byte pairs scanned.
func equal(a, b []byte) (bool, int) {
	if len(a) != len(b) {
		return false, 0
	}

	var acc byte
	scanned := 0
	for i := range a {
		acc |= a[i] ^ b[i]
		scanned++
	}
	return acc == 0, scanned
}
