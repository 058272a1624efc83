package commands

import (
	"context"
	"fmt"

	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/internal/cli/output"
)

const healthUsage = `Usage: srp health [flags]

Query the server's status and default SRP parameters.

Flags:
`

// HealthCommand implements 'srp health'.
type HealthCommand struct {
	stdio IO
}

// NewHealthCommand creates a new health command instance.
func NewHealthCommand(stdio IO) *HealthCommand {
	return &HealthCommand{stdio: stdio}
}

// Run queries /healthz.
func (c *HealthCommand) Run(ctx context.Context, args []string) error {
	fs := newFlagSet("health", c.stdio, healthUsage)
	conn := addConnectionFlags(fs)
	outputFormat := fs.String("output", "yaml", "Output format (yaml or json)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	format, err := output.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}

	cfg, err := conn.loadConfig()
	if err != nil {
		return err
	}

	apiClient, err := client.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	health, err := apiClient.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return output.Print(c.stdio.Out, health, format)
}

const fingerprintUsage = `Usage: srp fingerprint [flags]

Print the SHA-256 fingerprint of the server's TLS certificate without
verifying it. Compare it out of band, then pass it to --fingerprint.

Flags:
`

// FingerprintCommand implements 'srp fingerprint'.
type FingerprintCommand struct {
	stdio IO
}

// NewFingerprintCommand creates a new fingerprint command instance.
func NewFingerprintCommand(stdio IO) *FingerprintCommand {
	return &FingerprintCommand{stdio: stdio}
}

// Run connects to the server and prints its certificate fingerprint.
func (c *FingerprintCommand) Run(ctx context.Context, args []string) error {
	fs := newFlagSet("fingerprint", c.stdio, fingerprintUsage)
	conn := addConnectionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := conn.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Plaintext {
		return fmt.Errorf("fingerprint requires a TLS server")
	}

	fp, err := client.FetchFingerprint(ctx, cfg.Address())
	if err != nil {
		return err
	}

	fmt.Fprintln(c.stdio.Out, fp)
	return nil
}
