package srp

import "math/big"

// State is the position of a client or server session in the exchange.
// Sessions only move forward.
type State int

// Session states.
const (
	// StateCreated holds the ephemeral secret; no public value has been handed out.
	StateCreated State = iota
	// StatePublicComputed means the own public value (A or B) is available.
	StatePublicComputed
	// StateSecretComputed means the peer's public value was accepted and
	// S, K, M1 and M2 are derived.
	StateSecretComputed
	// StateConfirmed means the peer's proof was checked successfully.
	StateConfirmed
	// StateFailed means the exchange was aborted; secrets are scrubbed.
	StateFailed
	// StateClosed means the session was closed by its owner; secrets are scrubbed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePublicComputed:
		return "public-computed"
	case StateSecretComputed:
		return "secret-computed"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// terminal reports whether no further protocol step is allowed.
func (s State) terminal() bool {
	return s == StateFailed || s == StateClosed
}

// derived holds the values both sides compute once the peer's public value
// is known.
type derived struct {
	u  *big.Int
	S  *big.Int
	k  []byte
	m1 []byte
	m2 []byte
}

func (d *derived) scrub() {
	scrubInt(d.u)
	scrubInt(d.S)
	scrub(d.k)
	scrub(d.m1)
	scrub(d.m2)
	*d = derived{}
}

// scrubInt zeroes the words backing x.
func scrubInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
