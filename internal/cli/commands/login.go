package commands

import (
	"context"
	"fmt"

	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/internal/cli/session"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

const loginUsage = `Usage: srp login [flags]

Authenticate with the srpgate server using SRP-6a. The password never
leaves this machine. The server must prove it holds the account's verifier
before the session token is saved for subsequent commands.

Flags:
`

// LoginCommand implements 'srp login'.
type LoginCommand struct {
	stdio IO
}

// NewLoginCommand creates a new login command instance.
func NewLoginCommand(stdio IO) *LoginCommand {
	return &LoginCommand{stdio: stdio}
}

// Run parses args, performs the login and saves the token.
func (c *LoginCommand) Run(ctx context.Context, args []string) error {
	fs := newFlagSet("login", c.stdio, loginUsage)
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
	}
	defer clear(password)

	apiClient, err := client.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	fmt.Fprintf(c.stdio.Err, "Authenticating with %s...\n", cfg.Address())

	result, err := apiClient.Login(ctx, identity, password, protocol.Parameters{
		GroupBits: creds.groupBits,
		Hash:      creds.hash,
	})
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	clear(result.SessionKey)

	store, err := session.NewStore()
	if err != nil {
		return fmt.Errorf("failed to access session store: %w", err)
	}
	if err := store.Save(cfg.Address(), &session.Token{
		Identity:  result.Identity,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}); err != nil {
		return err
	}

	// Remember the server so --host isn't required next time.
	if err := cfg.Save(); err != nil {
		fmt.Fprintf(c.stdio.Err, "Warning: failed to save connection config: %v\n", err)
	}

	fmt.Fprintf(c.stdio.Err, "Authentication successful (%d-bit group, %s). Session valid until %s.\n",
		result.GroupBits, result.Hash, result.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}
