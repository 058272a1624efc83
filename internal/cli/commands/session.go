package commands

import (
	"context"
	"fmt"

	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/internal/cli/output"
)

const whoamiUsage = `Usage: srp whoami [flags]

Show the identity and remaining lifetime of the saved session.
Requires prior authentication via 'srp login'.

Flags:
`

// WhoamiCommand implements 'srp whoami'.
type WhoamiCommand struct {
	stdio IO
}

// NewWhoamiCommand creates a new whoami command instance.
func NewWhoamiCommand(stdio IO) *WhoamiCommand {
	return &WhoamiCommand{stdio: stdio}
}

// Run queries the server for the saved session.
func (c *WhoamiCommand) Run(ctx context.Context, args []string) error {
	fs := newFlagSet("whoami", c.stdio, whoamiUsage)
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

	apiClient, store, err := authenticatedClient(cfg)
	if err != nil {
		return err
	}

	resp, err := apiClient.Session(ctx)
	if err != nil {
		if client.IsAuthError(err) {
			// The server no longer knows the token; forget it locally too.
			_ = store.Delete(cfg.Address())
			return fmt.Errorf("session no longer valid. Run 'srp login' to authenticate: %w", err)
		}
		return fmt.Errorf("failed to query session: %w", err)
	}

	return output.Print(c.stdio.Out, resp, format)
}

const logoutUsage = `Usage: srp logout [flags]

Revoke the saved session on the server and delete it locally.

Flags:
`

// LogoutCommand implements 'srp logout'.
type LogoutCommand struct {
	stdio IO
}

// NewLogoutCommand creates a new logout command instance.
func NewLogoutCommand(stdio IO) *LogoutCommand {
	return &LogoutCommand{stdio: stdio}
}

// Run revokes the saved session. A token the server already dropped is
// still deleted locally.
func (c *LogoutCommand) Run(ctx context.Context, args []string) error {
	fs := newFlagSet("logout", c.stdio, logoutUsage)
	conn := addConnectionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := conn.loadConfig()
	if err != nil {
		return err
	}

	apiClient, store, err := authenticatedClient(cfg)
	if err != nil {
		return err
	}

	if err := apiClient.Logout(ctx); err != nil && !client.IsAuthError(err) {
		return fmt.Errorf("logout failed: %w", err)
	}

	if err := store.Delete(cfg.Address()); err != nil {
		return err
	}

	fmt.Fprintln(c.stdio.Err, "Logged out.")
	return nil
}
