// Package tls provides TLS configuration and self-signed certificate
// generation for the srpgate daemon.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 365 * 24 * time.Hour

// buildSANs returns the DNS names and IP addresses a generated certificate
// covers: loopback, the system hostname and any extra hosts.
func buildSANs(extraHosts []string) (dnsNames []string, ipAddresses []net.IP) {
	dnsNames = []string{"localhost"}
	ipAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}

	if hostname, err := os.Hostname(); err == nil && hostname != "" && hostname != "localhost" {
		dnsNames = append(dnsNames, hostname)
	}

	for _, host := range extraHosts {
		if host == "" {
			continue
		}
		if ip := net.ParseIP(host); ip != nil {
			ipAddresses = append(ipAddresses, ip)
			continue
		}
		dnsNames = append(dnsNames, host)
	}

	return dnsNames, ipAddresses
}

// GenerateSelfSignedCert writes a self-signed ECDSA P-256 certificate and
// its key to certPath and keyPath. The key file is created with mode 0600.
//
//nolint:gosec // G304: File paths are from config
func GenerateSelfSignedCert(certPath, keyPath string, validity time.Duration, extraHosts ...string) error {
	if validity <= 0 {
		validity = DefaultValidity
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return fmt.Errorf("failed to generate serial number: %w", err)
	}

	dnsNames, ipAddresses := buildSANs(extraHosts)
	now := time.Now()

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"srpgate"},
			CommonName:   "srpgate",
		},
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(validity),

		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,

		DNSNames:    dnsNames,
		IPAddresses: ipAddresses,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateKeyBytes})
	if err := writePEM(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	if err := writePEM(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write cert: %w", err)
	}

	return nil
}

func writePEM(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, perm)
}

// CertificateExists checks if both certificate and key files exist.
func CertificateExists(certPath, keyPath string) bool {
	if _, err := os.Stat(certPath); errors.Is(err, os.ErrNotExist) {
		return false
	}
	if _, err := os.Stat(keyPath); errors.Is(err, os.ErrNotExist) {
		return false
	}
	return true
}

// ValidateCertificate checks if a certificate file is valid and not expired.
//
//nolint:gosec // G304: Certificate path is from config
func ValidateCertificate(certPath string) error {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return fmt.Errorf("failed to decode PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid")
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate has expired")
	}

	return nil
}

// EnsureSelfSigned generates a certificate at certPath and keyPath unless a
// valid one is already there. It reports whether a new one was written.
func EnsureSelfSigned(certPath, keyPath string, extraHosts ...string) (bool, error) {
	if CertificateExists(certPath, keyPath) && ValidateCertificate(certPath) == nil {
		return false, nil
	}
	if err := GenerateSelfSignedCert(certPath, keyPath, DefaultValidity, extraHosts...); err != nil {
		return false, err
	}
	return true, nil
}
