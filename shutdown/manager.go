package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"t2i_backend/logging"
)

// Manager ties together the operation tracker, the cleanup registry and
// signal handling.
//
//	m := shutdown.NewManager(logger, shutdown.WithTimeout(30*time.Second))
//	m.Register("database", shutdown.PriorityDatabase, func(ctx context.Context) error {
//	    return database.Close()
//	})
//	m.Start()
//	<-m.Context().Done()
//	err := m.Shutdown()
type Manager struct {
	logger  *logging.Logger
	timeout time.Duration
	onForce func()

	mu       sync.Mutex
	started  bool
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds the whole shutdown sequence. Default 30s.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithForceExit replaces the default os.Exit(1) run on the second signal.
func WithForceExit(fn func()) ManagerOption {
	return func(m *Manager) {
		m.onForce = fn
	}
}

// NewManager returns a manager whose context is live until the first
// shutdown signal or Trigger call.
func NewManager(logger *logging.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:   logger.Named("shutdown"),
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		tracker:  NewOperationTracker(),
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 1),
	}
	m.onForce = func() { os.Exit(1) }
	for _, opt := range opts {
		opt(m)
	}
	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Second shutdown signal received, forcing exit")
		m.onForce()
	})
	return m
}

// Context is canceled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Tracker exposes the in-flight operation tracker.
func (m *Manager) Tracker() *OperationTracker {
	return m.tracker
}

// Register adds a cleanup step run by Shutdown.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown step",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start listens for SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.Trigger(sig.String())
		}
	}()
}

// Trigger counts a shutdown request from source. The first one cancels
// Context; the second forces exit.
func (m *Manager) Trigger(source string) {
	if m.signals.Increment() == 1 {
		m.logger.Info("Shutdown requested", zap.String("source", source))
		m.cancel()
	}
}

// Shutdown stops new operations, waits for running ones and runs the
// cleanup steps, all within the configured timeout. It is idempotent.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	m.cancel()
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.tracker.Close()
	if n := m.tracker.ActiveCount(); n > 0 {
		m.logger.Info("Waiting for in-flight dispatches", zap.Int64("active", n))
	}
	var waitErr error
	if err := m.tracker.Wait(ctx); err != nil {
		waitErr = fmt.Errorf("shutdown: %d dispatches still running: %w", m.tracker.ActiveCount(), err)
		m.logger.Warn("Timed out waiting for in-flight dispatches",
			zap.Int64("remaining", m.tracker.ActiveCount()))
	}

	// cleanup always gets at least a second
	if deadline, _ := ctx.Deadline(); time.Until(deadline) < time.Second {
		cancel()
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		defer cancel()
	}

	m.logger.Info("Running shutdown steps", zap.Strings("steps", m.registry.Names()))
	errs := m.registry.Run(ctx)
	for _, err := range errs {
		m.logger.Error("Shutdown step failed", zap.Error(err))
	}

	if started {
		signal.Stop(m.sigChan)
	}

	if waitErr != nil {
		errs = append([]error{waitErr}, errs...)
	}
	if len(errs) > 0 {
		m.logger.Error("Shutdown finished with errors",
			zap.Duration("duration", time.Since(start)),
			zap.Int("errors", len(errs)))
		return errors.Join(errs...)
	}
	m.logger.Info("Shutdown complete", zap.Duration("duration", time.Since(start)))
	return nil
}

// IsShuttingDown reports whether shutdown has begun.
func (m *Manager) IsShuttingDown() bool {
	return m.ctx.Err() != nil || m.tracker.IsClosed()
}
