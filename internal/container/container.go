package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/dispatcher"
	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/host"
	"github.com/garyjia/hookmanager/internal/infrastructure/catalog"
	"github.com/garyjia/hookmanager/internal/infrastructure/telemetry"
	"github.com/garyjia/hookmanager/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle
type Container struct {
	config *Config
	logger *zap.Logger

	// Side-channels
	telemetry *telemetry.Providers
	tracker   *telemetry.DispatchTracker
	journal   *JournalBundle
	workers   *worker.Manager

	// Hooks
	registry   *catalog.Registry
	dispatcher *dispatcher.Dispatcher
	host       *host.ModuleHandler

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes components in dependency order:
// 1. Telemetry
// 2. Failure journal (when enabled)
// 3. Handler registry
// 4. Dispatcher and host surface
// 5. Background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	providers, tracker, err := ProvideTelemetry(ctx, &c.config.Telemetry)
	if err != nil {
		return err
	}
	c.telemetry, c.tracker = providers, tracker
	c.logger.Info("Telemetry initialized", zap.Bool("enabled", c.config.Telemetry.Enabled))

	var recorders []port.FailureRecorder
	if c.config.Journal.Enabled {
		journal, err := ProvideJournal(ctx, &c.config.Journal, c.logger)
		if err != nil {
			c.teardown(ctx)
			return fmt.Errorf("failed to initialize journal: %w", err)
		}
		c.journal = journal
		recorders = append(recorders, journal.Recorder)
		c.logger.Info("Failure journal initialized", zap.String("path", c.config.Journal.Path))
	}

	registry, err := ProvideRegistry(&c.config.Catalog, c.logger.Named("catalog"))
	if err != nil {
		c.teardown(ctx)
		return fmt.Errorf("failed to initialize registry: %w", err)
	}
	c.registry = registry
	c.logger.Info("Handler registry initialized", zap.Int("handlers", registry.Len()))

	c.dispatcher = ProvideDispatcher(&DispatcherDeps{
		Registry:  registry,
		Tracker:   tracker,
		Recorders: recorders,
		Memoize:   c.config.Dispatcher.Memoize,
		Logger:    c.logger.Named("dispatcher"),
	})
	c.host = ProvideHost(c.dispatcher, c.logger)
	c.logger.Info("Dispatcher initialized", zap.Bool("memoize", c.config.Dispatcher.Memoize))

	c.workers = ProvideWorkers(&c.config.Journal, c.journal, c.logger)
	if err := c.workers.Start(context.WithoutCancel(ctx)); err != nil {
		c.teardown(ctx)
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// ReloadCatalog rebuilds the registry from code defaults and the manifest,
// then points the host at it
func (c *Container) ReloadCatalog() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}

	registry, err := ProvideRegistry(&c.config.Catalog, c.logger.Named("catalog"))
	if err != nil {
		return fmt.Errorf("failed to reload registry: %w", err)
	}

	c.registry = registry
	c.host.Reload(registry, registry)
	return nil
}

// Close shuts down components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown(context.Background())

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown(ctx context.Context) []error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.Stop(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// Dispatcher, host and registry hold no resources
	c.host, c.dispatcher, c.registry = nil, nil, nil

	if c.journal != nil {
		if err := c.journal.DB.Close(); err != nil {
			c.logger.Error("Failed to close journal", zap.Error(err))
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
		c.journal = nil
	}

	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(ctx); err != nil {
			c.logger.Error("Failed to shut down telemetry", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		c.telemetry, c.tracker = nil, nil
	}

	return errs
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Host returns the host dispatch surface
func (c *Container) Host() *host.ModuleHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// Dispatcher returns the plugin dispatcher
func (c *Container) Dispatcher() *dispatcher.Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dispatcher
}

// Registry returns the current handler registry
func (c *Container) Registry() *catalog.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry
}

// Failures returns the failure journal repository, or nil when disabled
func (c *Container) Failures() port.FailureRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.journal == nil {
		return nil
	}
	return c.journal.Repository
}

// Health returns health status of all components
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.registry != nil {
		status.Components["registry"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("handlers: %d", c.registry.Len()),
		}
	} else {
		status.Components["registry"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.Running(),
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
		if !c.workers.Running() {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	switch {
	case !c.config.Journal.Enabled:
		status.Components["journal"] = ComponentHealth{Healthy: true, Message: "disabled"}
	case c.journal == nil:
		status.Components["journal"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	default:
		if err := c.journal.DB.Ping(); err != nil {
			status.Components["journal"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["journal"] = ComponentHealth{Healthy: true}
		}
	}

	return status
}
