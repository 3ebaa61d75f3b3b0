package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/computefleet/fleetd/pkg/logging"
)

// Manager coordinates graceful daemon teardown. Components register
// stop functions as they start; on SIGINT/SIGTERM the functions run
// in reverse registration order so dependents stop before their
// dependencies.
type Manager struct {
	mu      sync.Mutex
	funcs   []namedFunc
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
	logger  *logging.Logger
}

type namedFunc struct {
	name string
	fn   func(context.Context) error
}

// New creates a shutdown manager. The timeout bounds the whole
// teardown, not each function.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Manager{
		timeout: timeout,
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Register adds a named stop function. LIFO order on shutdown.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, namedFunc{name: name, fn: fn})
}

// Done is closed once shutdown begins
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until SIGINT or SIGTERM, then runs teardown
func (m *Manager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	m.logger.Info(fmt.Sprintf("Received signal %v, shutting down", sig))

	m.once.Do(func() { close(m.done) })
	m.Shutdown()
}

// Shutdown runs all registered stop functions in reverse order
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.funcs) - 1; i >= 0; i-- {
		entry := m.funcs[i]
		m.logger.Debug(fmt.Sprintf("Stopping %s", entry.name))
		if err := entry.fn(ctx); err != nil {
			m.logger.Error(fmt.Sprintf("Error stopping %s: %v", entry.name, err))
		}
	}
	m.logger.Info("Shutdown complete")
}

// StopHTTPServer wraps an http.Server style Shutdown for registration
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return server.Shutdown
}

// CloseResource wraps an io.Closer for registration
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return closer.Close()
	}
}
