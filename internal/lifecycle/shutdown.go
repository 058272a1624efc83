// Package lifecycle coordinates signal handling and ordered shutdown of the
// srpgate daemon.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fzdarsky/srpgate/internal/logging"
)

// DefaultHookTimeout bounds each shutdown hook.
const DefaultHookTimeout = 10 * time.Second

// hook releases one component on shutdown.
type hook struct {
	name string
	stop func(context.Context) error
}

// ShutdownManager turns SIGTERM/SIGINT or an explicit Shutdown call into a
// cancelled context, then stops registered components in reverse order of
// registration.
type ShutdownManager struct {
	shutdownChan chan struct{}
	signalChan   chan os.Signal
	logger       *logging.Logger

	mu       sync.Mutex
	shutdown bool
	stopped  bool
	reason   string
	hooks    []hook
}

// NewShutdownManager creates a new shutdown manager.
func NewShutdownManager(logger *logging.Logger) *ShutdownManager {
	return &ShutdownManager{
		shutdownChan: make(chan struct{}, 1),
		signalChan:   make(chan os.Signal, 1),
		logger:       logger,
	}
}

// OnShutdown registers stop to run during RunHooks. Hooks run last in,
// first out, so components are stopped before the ones they depend on.
func (sm *ShutdownManager) OnShutdown(name string, stop func(context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, hook{name: name, stop: stop})
}

// Start begins listening for shutdown signals (SIGTERM, SIGINT).
// Returns a context that will be cancelled when shutdown is initiated.
func (sm *ShutdownManager) Start(ctx context.Context) context.Context {
	signal.Notify(sm.signalChan, syscall.SIGTERM, syscall.SIGINT)

	shutdownCtx, cancel := context.WithCancel(ctx)

	go func() {
		select {
		case sig, ok := <-sm.signalChan:
			if ok {
				sm.markShutdown(fmt.Sprintf("received signal: %v", sig))
			}
		case <-sm.shutdownChan:
		case <-ctx.Done():
		}
		cancel()
	}()

	return shutdownCtx
}

// Shutdown initiates a graceful shutdown with the given reason.
func (sm *ShutdownManager) Shutdown(reason string) {
	if !sm.markShutdown(reason) {
		return
	}

	select {
	case sm.shutdownChan <- struct{}{}:
	default:
	}
}

// markShutdown records reason unless shutdown was already initiated.
func (sm *ShutdownManager) markShutdown(reason string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return false
	}
	sm.shutdown = true
	sm.reason = reason
	return true
}

// IsShutdown returns whether shutdown has been initiated.
func (sm *ShutdownManager) IsShutdown() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.shutdown
}

// Reason returns the reason for shutdown.
func (sm *ShutdownManager) Reason() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.reason
}

// RunHooks runs the registered hooks in reverse order, each bounded by
// timeout. All hooks run even if some fail; their errors are joined.
func (sm *ShutdownManager) RunHooks(ctx context.Context, timeout time.Duration) error {
	sm.mu.Lock()
	hooks := sm.hooks
	sm.hooks = nil
	sm.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := GracefulShutdown(ctx, h.stop, timeout); err != nil {
			sm.logger.Error("shutdown hook failed", map[string]any{
				"component": h.name,
				"error":     err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		sm.logger.Debug("component stopped", map[string]any{
			"component": h.name,
		})
	}
	return errors.Join(errs...)
}

// Stop stops listening for signals and closes channels.
func (sm *ShutdownManager) Stop() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.stopped {
		return
	}

	sm.stopped = true
	signal.Stop(sm.signalChan)
	close(sm.signalChan)
}

// GracefulShutdown performs a graceful shutdown of the given shutdownFunc
// with a timeout. If the shutdown takes longer than timeout, it forces shutdown.
func GracefulShutdown(ctx context.Context, shutdownFunc func(context.Context) error, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- shutdownFunc(shutdownCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timed out after %v", timeout)
	}
}
