package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/fzdarsky/srpgate/internal/cli/config"
	cliTLS "github.com/fzdarsky/srpgate/internal/cli/tls"
)

// NewTransport builds the HTTP transport for cfg. A pinned fingerprint
// replaces chain verification; otherwise the CA bundle, or the system
// roots when none is given, verify the server.
func NewTransport(cfg *config.Config) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Plaintext {
		return transport, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert) // #nosec G304 - CACert is user-provided config
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CACert)
		}
		tlsConfig.RootCAs = certPool
	}

	if cfg.Fingerprint != "" {
		// The pin is checked in VerifyPeerCertificate instead of the chain.
		tlsConfig.InsecureSkipVerify = true // #nosec G402
		tlsConfig.VerifyPeerCertificate = cliTLS.PinVerifier(cfg.Fingerprint)
	}

	transport.TLSClientConfig = tlsConfig
	return transport, nil
}

// FetchFingerprint connects to address without verifying the server and
// returns the fingerprint of the certificate it presents.
func FetchFingerprint(ctx context.Context, address string) (string, error) {
	dialer := &tls.Dialer{Config: &tls.Config{
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true, // #nosec G402 - certificate is only read, never trusted
	}}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer func() { _ = conn.Close() }()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return "", fmt.Errorf("no TLS certificate received from %s", address)
	}
	return cliTLS.ComputeFingerprint(certs[0]), nil
}
