// Package commands provides CLI command implementations for the srp tool.
package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/fzdarsky/srpgate/internal/cli/clicontext"
	"github.com/fzdarsky/srpgate/internal/cli/client"
	"github.com/fzdarsky/srpgate/internal/cli/config"
	"github.com/fzdarsky/srpgate/internal/cli/session"
)

// IO holds the streams a command reads from and writes to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdIO returns the process's standard streams.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Command is one srp subcommand.
type Command interface {
	Run(ctx context.Context, args []string) error
}

// Execute runs cmd and exits with status 1 on error.
func Execute(cmd Command, stdio IO, args []string) {
	if err := cmd.Run(context.Background(), args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(stdio.Err, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connectionFlags are the server selection flags shared by every command.
type connectionFlags struct {
	host        string
	port        int
	caCert      string
	fingerprint string
	plaintext   bool
}

func addConnectionFlags(fs *flag.FlagSet) *connectionFlags {
	cf := &connectionFlags{}
	fs.StringVar(&cf.host, "host", "", "srpgate server hostname or IP")
	fs.IntVar(&cf.port, "port", 0, "srpgate server port")
	fs.StringVar(&cf.caCert, "ca-cert", "", "Path to custom CA certificate bundle")
	fs.StringVar(&cf.fingerprint, "fingerprint", "", "Pin the server certificate (SHA256:<base64>)")
	fs.BoolVar(&cf.plaintext, "plaintext", false, "Use HTTP instead of HTTPS")
	return cf
}

// loadConfig loads the CLI configuration and applies cf on top of it.
func (cf *connectionFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.ApplyFlags(config.Flags{
		Host:        cf.host,
		Port:        cf.port,
		CACert:      cf.caCert,
		Fingerprint: cf.fingerprint,
		Plaintext:   cf.plaintext,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireHost(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newFlagSet creates a flag set that reports errors instead of exiting.
func newFlagSet(name string, stdio IO, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stdio.Err)
	fs.Usage = func() {
		fmt.Fprint(stdio.Err, usage)
		fs.PrintDefaults()
	}
	return fs
}

// authenticatedClient returns a client carrying the saved token for cfg.
func authenticatedClient(cfg *config.Config) (*client.Client, *session.Store, error) {
	apiClient, err := client.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	store, err := session.NewStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access session store: %w", err)
	}

	token, err := store.Load(cfg.Address())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session token: %w", err)
	}
	if token == nil {
		return nil, nil, fmt.Errorf("no active session. Run 'srp login' to authenticate")
	}

	apiClient.SetSessionToken(token.Token)
	return apiClient, store, nil
}

// prompter reads interactive answers from one buffered view of stdin.
type prompter struct {
	stdio  IO
	reader *bufio.Reader
}

func newPrompter(stdio IO) *prompter {
	return &prompter{stdio: stdio, reader: bufio.NewReader(stdio.In)}
}

func (p *prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// errNonInteractive is returned instead of prompting in non-interactive mode.
var errNonInteractive = errors.New("input required but prompting is disabled (--non-interactive)")

// identity prompts for an identity.
func (p *prompter) identity() (string, error) {
	if clicontext.NonInteractive() {
		return "", fmt.Errorf("identity: %w", errNonInteractive)
	}
	fmt.Fprint(p.stdio.Err, "Identity: ")
	line, err := p.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read identity: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// password prompts for a password, hiding the input on a terminal.
func (p *prompter) password(prompt string) ([]byte, error) {
	if clicontext.NonInteractive() {
		return nil, fmt.Errorf("password: %w", errNonInteractive)
	}
	fmt.Fprint(p.stdio.Err, prompt)
	defer fmt.Fprintln(p.stdio.Err)

	if f, ok := p.stdio.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return password, nil
	}

	line, err := p.readLine()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return []byte(line), nil
}
