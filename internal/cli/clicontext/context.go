// Package clicontext provides global CLI context and state management.
package clicontext

import "sync"

// Global holds the global CLI context, including flags that affect all commands.
type Global struct {
	// NonInteractive turns every prompt into an error, for CI pipelines and
	// scripts that must pass credentials as flags.
	NonInteractive bool
}

var (
	globalContext = &Global{}
	mu            sync.RWMutex
)

// Set updates the global CLI context.
func Set(ctx *Global) {
	mu.Lock()
	defer mu.Unlock()
	globalContext = ctx
}

// Get returns the current global CLI context.
func Get() *Global {
	mu.RLock()
	defer mu.RUnlock()
	return globalContext
}

// NonInteractive returns whether prompting is disabled.
func NonInteractive() bool {
	mu.RLock()
	defer mu.RUnlock()
	return globalContext.NonInteractive
}

// SetNonInteractive sets the non-interactive flag.
func SetNonInteractive(value bool) {
	mu.Lock()
	defer mu.Unlock()
	globalContext.NonInteractive = value
}
