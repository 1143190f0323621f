package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager handles operator interruption: the first SIGINT/SIGTERM cancels
// the in-flight run context so the current stage subprocess is terminated
// cleanly; a second signal exits immediately.
type Manager struct {
	shutdownFuncs []func(context.Context) error
	mu            sync.Mutex
	timeout       time.Duration
	once          sync.Once
}

// New creates a new shutdown manager
func New(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Register adds a shutdown function. Functions are called in reverse
// order (LIFO).
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownFuncs = append(m.shutdownFuncs, fn)
}

// WatchContext returns a child context canceled on the first interrupt
// signal. The caller's cancel must still be deferred.
func (m *Manager) WatchContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			fmt.Printf("\nReceived signal: %v, canceling run...\n", sig)
			cancel()
			// Second signal: give up on graceful teardown
			<-sigChan
			os.Exit(130)
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Shutdown executes all registered shutdown functions
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		// Execute shutdown functions in reverse order (LIFO)
		for i := len(m.shutdownFuncs) - 1; i >= 0; i-- {
			if err := m.shutdownFuncs[i](ctx); err != nil {
				fmt.Printf("Shutdown function %d error: %v\n", i, err)
			}
		}
	})
}
