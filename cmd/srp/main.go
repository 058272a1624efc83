// Package main provides the srp CLI tool for srpgate servers.
//
// The srp CLI registers accounts and logs in with SRP-6a, so the password
// never crosses the network, then manages the resulting session token.
package main

import (
	"fmt"
	"os"

	"github.com/fzdarsky/srpgate/internal/cli/clicontext"
	"github.com/fzdarsky/srpgate/internal/cli/commands"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args, command := parseGlobalFlags(os.Args[1:])

	switch command {
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("srp version %s\n", version)
		os.Exit(0)
	}

	stdio := commands.StdIO()

	var cmd commands.Command
	switch command {
	case "register":
		cmd = commands.NewRegisterCommand(stdio)
	case "login":
		cmd = commands.NewLoginCommand(stdio)
	case "whoami":
		cmd = commands.NewWhoamiCommand(stdio)
	case "logout":
		cmd = commands.NewLogoutCommand(stdio)
	case "health":
		cmd = commands.NewHealthCommand(stdio)
	case "fingerprint":
		cmd = commands.NewFingerprintCommand(stdio)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}

	commands.Execute(cmd, stdio, args)
}

// parseGlobalFlags processes global flags and returns remaining args and the command.
// Global flags like --non-interactive can appear anywhere in the argument list.
// Examples:
//
//	srp -n login --host localhost        (before command)
//	srp login -n --host localhost        (after command)
//	srp login --host localhost -n        (at the end)
func parseGlobalFlags(args []string) ([]string, string) {
	remainingArgs := make([]string, 0, len(args))
	var command string

	for _, arg := range args {
		if arg == "--non-interactive" || arg == "-n" {
			clicontext.SetNonInteractive(true)
			continue
		}

		// First non-flag argument is the command
		if command == "" && !isFlag(arg) {
			command = arg
			continue
		}

		remainingArgs = append(remainingArgs, arg)
	}

	// --help and --version are commands when nothing else was given.
	if command == "" && len(remainingArgs) > 0 {
		command, remainingArgs = remainingArgs[0], remainingArgs[1:]
	}

	return remainingArgs, command
}

// isFlag returns true if the argument looks like a flag (starts with -).
func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `srp - SRP-6a client for srpgate servers

Usage:
  srp <command> [flags]

Available Commands:
  register     Create an account
  login        Authenticate and save a session token
  whoami       Show the saved session
  logout       Revoke the saved session
  health       Query server status and default SRP parameters
  fingerprint  Print the server's TLS certificate fingerprint

Global Flags:
  --help, -h             Show help information
  --version, -v          Show version information
  --non-interactive, -n  Fail instead of prompting for missing input

Examples:
  # Create an account with the server's default parameters
  srp register --host auth.example.com --identity alice

  # Create an account with a larger group
  srp register --host auth.example.com --identity alice --group-bits 3072 --hash sha512

  # Pin a self-signed server certificate and log in
  srp fingerprint --host 192.168.1.100
  srp login --host 192.168.1.100 --fingerprint SHA256:... --identity alice

  # Non-interactive login (for CI/CD)
  srp -n login --host auth.example.com --identity ci --password "$SRP_PASSWORD"

  # Show the current session as JSON
  srp whoami --output json

For detailed help on a specific command, run:
  srp <command> --help

`)
}
