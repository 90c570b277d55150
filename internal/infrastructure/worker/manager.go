// Package worker runs background maintenance loops alongside the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop. Run blocks until ctx is cancelled.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Manager runs registered workers and stops them together
type Manager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errs    []error
}

// NewManager creates a new worker manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Register adds a worker; it has no effect once the manager is running
func (m *Manager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.logger.Warn("Ignoring worker registered after start", zap.String("worker_name", w.Name()))
		return
	}
	m.workers = append(m.workers, w)
	m.logger.Debug("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// Start launches every registered worker in its own goroutine
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.errs = nil

	for _, w := range m.workers {
		m.wg.Add(1)
		go m.run(ctx, w)
	}

	m.logger.Info("Workers started", zap.Int("count", len(m.workers)))
	return nil
}

func (m *Manager) run(ctx context.Context, w Worker) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.fail(w, fmt.Errorf("worker %s panicked: %v", w.Name(), r))
		}
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.fail(w, err)
	}
}

func (m *Manager) fail(w Worker, err error) {
	m.logger.Error("Worker exited with error",
		zap.String("worker_name", w.Name()),
		zap.Error(err))

	m.mu.Lock()
	m.errs = append(m.errs, err)
	m.mu.Unlock()
}

// Stop cancels every worker and waits for them to return
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		return fmt.Errorf("%d workers failed: %w", len(m.errs), errors.Join(m.errs...))
	}

	m.logger.Info("Workers stopped")
	return nil
}

// Count returns the number of registered workers
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Running reports whether the workers have been started and not stopped
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
