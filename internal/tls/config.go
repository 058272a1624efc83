package tls

import (
	"crypto/tls"
	"fmt"
)

// NewServerConfig creates a TLS configuration for the HTTPS server.
// Only TLS 1.3 is accepted; its cipher suites are not configurable.
func NewServerConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},

		// Login state lives in SRP handshakes, not in TLS sessions.
		SessionTicketsDisabled: true,

		ClientAuth: tls.NoClientCert,
	}, nil
}
