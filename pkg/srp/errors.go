package srp

import (
	"errors"
	"fmt"
)

var (
	// ErrPadding is returned when a value does not fit the requested padded length.
	ErrPadding = errors.New("value exceeds padded length")

	// ErrInvalidPublicValue is returned when a peer's public value is not in [1, N-1].
	ErrInvalidPublicValue = errors.New("invalid public value")

	// ErrIncompleteProtocol is returned when a derived value is requested
	// before the exchange has produced it.
	ErrIncompleteProtocol = errors.New("protocol exchange incomplete")

	// ErrServerNotAuthentic is returned by the client when the server proof M2 does not match.
	ErrServerNotAuthentic = errors.New("server is not authentic")

	// ErrClientAuthenticationFailed is returned by the server when the client proof M1 does not match.
	ErrClientAuthenticationFailed = errors.New("client authentication failed")

	// ErrInvalidState is returned when a session method is called out of order.
	ErrInvalidState = errors.New("invalid session state")

	// ErrUnknownGroup is returned for an unregistered group size.
	ErrUnknownGroup = errors.New("unknown SRP group")

	// ErrUnknownHash is returned for an unregistered hash algorithm.
	ErrUnknownHash = errors.New("unknown hash algorithm")

	// ErrWeakRandom is returned when the random source yields unusable output.
	ErrWeakRandom = errors.New("random source returned unusable output")
)

// PaddingError describes a value that could not be padded.
type PaddingError struct {
	Have int // natural length of the value in bytes
	Want int // requested length in bytes
}

func (e *PaddingError) Error() string {
	return fmt.Sprintf("%s: %d bytes into %d", ErrPadding, e.Have, e.Want)
}

// Unwrap lets errors.Is match ErrPadding.
func (e *PaddingError) Unwrap() error {
	return ErrPadding
}

// StateError reports a session method called in the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s not allowed in state %s", ErrInvalidState, e.Op, e.State)
}

// Unwrap lets errors.Is match ErrInvalidState.
func (e *StateError) Unwrap() error {
	return ErrInvalidState
}
