package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// HexBytes is a byte slice carried as a lowercase hex string in JSON. SRP
// values (salt, A, B, M1, M2) travel as fixed-width padded buffers, so
// leading zero bytes are preserved.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hex value must be a JSON string: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex value: %w", err)
	}
	*h = b
	return nil
}

// String returns the hex encoding.
func (h HexBytes) String() string {
	return hex.EncodeToString(h)
}

// CreateRequest registers an account. GroupBits and Hash override the
// server defaults for this account.
type CreateRequest struct {
	Identity  string `json:"identity"`
	Password  string `json:"password"`
	GroupBits int    `json:"group_bits,omitempty"`
	Hash      string `json:"hash,omitempty"`
}

// CreateResponse describes the created account.
type CreateResponse struct {
	Identity  string `json:"identity"`
	GroupBits int    `json:"group_bits"`
	Hash      string `json:"hash"`
}

// HelloRequest starts a login with the client public value A. GroupBits
// and Hash state the parameters A was computed with; when they differ from
// the account's, the server answers PARAMETER_MISMATCH.
type HelloRequest struct {
	Identity  string   `json:"identity"`
	A         HexBytes `json:"a"`
	GroupBits int      `json:"group_bits,omitempty"`
	Hash      string   `json:"hash,omitempty"`
}

// HelloResponse carries the account salt, the server public value B and the
// parameters the client must use.
type HelloResponse struct {
	HandshakeID string   `json:"handshake_id"`
	Salt        HexBytes `json:"salt"`
	B           HexBytes `json:"b"`
	GroupBits   int      `json:"group_bits"`
	Hash        string   `json:"hash"`
}

// ConfirmRequest carries the client proof M1.
type ConfirmRequest struct {
	Identity    string   `json:"identity"`
	HandshakeID string   `json:"handshake_id"`
	M1          HexBytes `json:"m1"`
}

// ConfirmResponse carries the server proof M2 and a bearer token.
type ConfirmResponse struct {
	M2        HexBytes  `json:"m2"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse describes the session behind a bearer token.
type SessionResponse struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// HealthResponse reports server liveness and the defaults for new accounts.
type HealthResponse struct {
	Status            string `json:"status"`
	GroupBits         int    `json:"group_bits"`
	Hash              string `json:"hash"`
	PendingHandshakes int    `json:"pending_handshakes"`
}
