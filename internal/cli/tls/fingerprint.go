// Package tls provides certificate pinning for the srp CLI tool.
package tls

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrFingerprintMismatch is returned when the server presents a certificate
// other than the pinned one.
var ErrFingerprintMismatch = errors.New("server certificate does not match pinned fingerprint")

const fingerprintPrefix = "SHA256:"

// ComputeFingerprint computes the SHA-256 fingerprint of a TLS certificate.
// The fingerprint is returned in the format "SHA256:<base64-encoded-hash>".
func ComputeFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return fingerprintPrefix + base64.StdEncoding.EncodeToString(hash[:])
}

// FingerprintMatches checks if a certificate's fingerprint matches the expected value.
func FingerprintMatches(cert *x509.Certificate, expected string) bool {
	actual := ComputeFingerprint(cert)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1
}

// PinVerifier returns a tls.Config VerifyPeerCertificate callback that
// accepts only a leaf certificate matching expected.
func PinVerifier(expected string) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("no TLS certificate received from server")
		}
		leaf, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("failed to parse server certificate: %w", err)
		}
		if !FingerprintMatches(leaf, expected) {
			return fmt.Errorf("%w: got %s", ErrFingerprintMismatch, ComputeFingerprint(leaf))
		}
		return nil
	}
}
