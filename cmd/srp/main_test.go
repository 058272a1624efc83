package main

import (
	"testing"

	"github.com/fzdarsky/srpgate/internal/cli/clicontext"
)

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name                   string
		input                  []string
		expectedCommand        string
		expectedArgs           []string
		expectedNonInteractive bool
	}{
		{
			name:                   "global flag before command",
			input:                  []string{"-n", "login", "--host", "localhost"},
			expectedCommand:        "login",
			expectedArgs:           []string{"--host", "localhost"},
			expectedNonInteractive: true,
		},
		{
			name:                   "global flag after command",
			input:                  []string{"login", "-n", "--host", "localhost"},
			expectedCommand:        "login",
			expectedArgs:           []string{"--host", "localhost"},
			expectedNonInteractive: true,
		},
		{
			name:                   "long form at end",
			input:                  []string{"register", "--host", "localhost", "--non-interactive"},
			expectedCommand:        "register",
			expectedArgs:           []string{"--host", "localhost"},
			expectedNonInteractive: true,
		},
		{
			name:            "no global flag",
			input:           []string{"whoami", "--output", "json"},
			expectedCommand: "whoami",
			expectedArgs:    []string{"--output", "json"},
		},
		{
			name:            "command only",
			input:           []string{"logout"},
			expectedCommand: "logout",
			expectedArgs:    []string{},
		},
		{
			name:            "version flag",
			input:           []string{"--version"},
			expectedCommand: "--version",
			expectedArgs:    []string{},
		},
		{
			name:                   "help flag after global flag",
			input:                  []string{"-n", "-h"},
			expectedCommand:        "-h",
			expectedArgs:           []string{},
			expectedNonInteractive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clicontext.SetNonInteractive(false)

			args, command := parseGlobalFlags(tt.input)

			if command != tt.expectedCommand {
				t.Errorf("parseGlobalFlags() command = %v, want %v", command, tt.expectedCommand)
			}

			if len(args) != len(tt.expectedArgs) {
				t.Errorf("parseGlobalFlags() args length = %v, want %v", len(args), len(tt.expectedArgs))
			} else {
				for i, arg := range args {
					if arg != tt.expectedArgs[i] {
						t.Errorf("parseGlobalFlags() args[%d] = %v, want %v", i, arg, tt.expectedArgs[i])
					}
				}
			}

			if clicontext.NonInteractive() != tt.expectedNonInteractive {
				t.Errorf("parseGlobalFlags() NonInteractive = %v, want %v", clicontext.NonInteractive(), tt.expectedNonInteractive)
			}
		})
	}
}

func TestIsFlag(t *testing.T) {
	tests := []struct {
		name     string
		arg      string
		expected bool
	}{
		{"short flag", "-n", true},
		{"long flag", "--non-interactive", true},
		{"command", "login", false},
		{"value", "localhost", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFlag(tt.arg); got != tt.expected {
				t.Errorf("isFlag(%q) = %v, want %v", tt.arg, got, tt.expected)
			}
		})
	}
}
