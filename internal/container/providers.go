package container

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/application/dispatcher"
	"github.com/garyjia/hookmanager/internal/application/port"
	"github.com/garyjia/hookmanager/internal/host"
	"github.com/garyjia/hookmanager/internal/infrastructure/catalog"
	"github.com/garyjia/hookmanager/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/hookmanager/internal/infrastructure/persistence/repository"
	"github.com/garyjia/hookmanager/internal/infrastructure/telemetry"
	"github.com/garyjia/hookmanager/internal/infrastructure/worker"
	"github.com/garyjia/hookmanager/internal/plugins/examples"
	"github.com/garyjia/hookmanager/pkg/database"
)

// JournalBundle groups the failure journal components
type JournalBundle struct {
	DB         *database.DB
	Repository *repository.FailureRepository
	Recorder   *repository.JournalRecorder
}

// ProvideTelemetry creates telemetry providers and the dispatch tracker
func ProvideTelemetry(ctx context.Context, cfg *TelemetryConfig) (*telemetry.Providers, *telemetry.DispatchTracker, error) {
	providers, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Enabled,
		Stdout:         cfg.Stdout,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		ExportInterval: cfg.ExportInterval,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	tracker, err := telemetry.NewDispatchTracker(providers)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, nil, err
	}
	return providers, tracker, nil
}

// ProvideJournal opens the journal database, runs migrations and purges
// failures older than the retention window
func ProvideJournal(ctx context.Context, cfg *JournalConfig, logger *zap.Logger) (*JournalBundle, error) {
	db, err := database.New(database.Config{
		Path:         cfg.Path,
		MaxOpenConns: cfg.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := database.NewMigrator(db, logger).Run(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run journal migrations: %w", err)
	}

	repo := repository.NewFailureRepository(db, logger)

	if cfg.Retention > 0 {
		purged, err := repo.Purge(ctx, time.Now().Add(-cfg.Retention))
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Purged expired handler failures", zap.Int64("count", purged))
	}

	return &JournalBundle{
		DB:         db,
		Repository: repo,
		Recorder:   repository.NewJournalRecorder(repo, logger),
	}, nil
}

// ProvideWorkers creates the background workers for the journal
func ProvideWorkers(cfg *JournalConfig, journal *JournalBundle, logger *zap.Logger) *worker.Manager {
	m := worker.NewManager(logger.Named("worker"))
	if journal != nil && cfg.Retention > 0 && cfg.SweepInterval > 0 {
		m.Register(worker.NewRetentionSweeper(journal.Repository, cfg.Retention, cfg.SweepInterval, logger))
	}
	return m
}

// ProvideRegistry builds a frozen registry from the bundled handlers and
// the optional manifest
func ProvideRegistry(cfg *CatalogConfig, logger *zap.Logger) (*catalog.Registry, error) {
	reg := catalog.NewRegistry(logger)
	if err := examples.Register(reg); err != nil {
		return nil, err
	}

	if cfg.ManifestPath != "" {
		manifest, err := catalog.LoadManifest(cfg.ManifestPath)
		if err != nil {
			return nil, err
		}
		applied, err := manifest.Apply(reg, examples.Constructors())
		if err != nil {
			return nil, err
		}
		logger.Info("Applied handler manifest",
			zap.String("path", cfg.ManifestPath),
			zap.Int("handlers", applied))
	}

	reg.Freeze()
	return reg, nil
}

// DispatcherDeps holds the dependencies of the dispatcher
type DispatcherDeps struct {
	Registry  *catalog.Registry
	Tracker   port.DispatchTracker
	Recorders []port.FailureRecorder
	Memoize   bool
	Logger    *zap.Logger
}

// ProvideDispatcher creates the dispatcher over the registry
func ProvideDispatcher(deps *DispatcherDeps) *dispatcher.Dispatcher {
	opts := []dispatcher.Option{
		dispatcher.WithLogger(deps.Logger),
		dispatcher.WithTracker(deps.Tracker),
		dispatcher.WithMemoization(deps.Memoize),
	}
	for _, r := range deps.Recorders {
		opts = append(opts, dispatcher.WithRecorder(r))
	}
	return dispatcher.New(deps.Registry, deps.Registry, opts...)
}

// ProvideHost creates the host dispatch surface
func ProvideHost(d *dispatcher.Dispatcher, logger *zap.Logger) *host.ModuleHandler {
	return host.NewModuleHandler(d, logger.Named("host"))
}
