package commands

import (
	"bytes"
	"context"
	"flag"
	"fmt"

	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

// credentialFlags are the account flags shared by register and login.
type credentialFlags struct {
	identity  string
	password  string
	groupBits int
	hash      string
}

func addCredentialFlags(fs *flag.FlagSet) *credentialFlags {
	cf := &credentialFlags{}
	fs.StringVar(&cf.identity, "identity", "", "Account identity (prompts if not provided)")
	fs.StringVar(&cf.password, "password", "", "Account password (prompts if not provided)")
	fs.IntVar(&cf.groupBits, "group-bits", 0, "SRP group size in bits (server default if not set)")
	fs.StringVar(&cf.hash, "hash", "", "SRP hash algorithm (server default if not set)")
	return cf
}

const registerUsage = `Usage: srp register [flags]

Create an account on the srpgate server. The server derives and stores a
password verifier; the password itself is not kept.

Flags:
`

// RegisterCommand implements 'srp register'.
type RegisterCommand struct {
	stdio IO
}

// NewRegisterCommand creates a new register command instance.
func NewRegisterCommand(stdio IO) *RegisterCommand {
	return &RegisterCommand{stdio: stdio}
}

// Run parses args and registers the account.
func (c *RegisterCommand) Run(ctx context.Context, args []string) error {
	fs := newFlagSet("register", c.stdio, registerUsage)
	conn := addConnectionFlags(fs)
	creds := addCredentialFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := conn.loadConfig()
	if err != nil {
		return err
	}

	prompt := newPrompter(c.stdio)
	identity := creds.identity
	if identity == "" {
		if identity, err = prompt.identity(); err != nil {
			return err
		}
	}

	password := []byte(creds.password)
	if len(password) == 0 {
		if password, err = prompt.password("Password: "); err != nil {
			return err
		}
		again, err := prompt.password("Confirm password: ")
		if err != nil {
			return err
		}
		match := bytes.Equal(password, again)
		clear(again)
		if !match {
			clear(password)
			return fmt.Errorf("passwords do not match")
		}
	}
	defer clear(password)

	apiClient, err := client.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	resp, err := apiClient.Create(ctx, protocol.CreateRequest{
		Identity:  identity,
		Password:  string(password),
		GroupBits: creds.groupBits,
		Hash:      creds.hash,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(c.stdio.Err, "Account %q created (%d-bit group, %s).\n", resp.Identity, resp.GroupBits, resp.Hash)
	return nil
}
