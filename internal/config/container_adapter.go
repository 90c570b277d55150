package config

import (
	"github.com/garyjia/hookmanager/internal/container"
)

// ToContainerConfig converts the loaded Config to a container.Config
func (c *Config) ToContainerConfig(version string) *container.Config {
	return &container.Config{
		Dispatcher: container.DispatcherConfig{
			Memoize: c.Dispatcher.Memoize,
		},
		Catalog: container.CatalogConfig{
			ManifestPath: c.Catalog.ManifestPath,
		},
		Journal: container.JournalConfig{
			Enabled:       c.Journal.Enabled,
			Path:          c.Journal.Path,
			MaxOpenConns:  c.Journal.MaxOpenConns,
			Retention:     c.Journal.Retention,
			SweepInterval: c.Journal.SweepInterval,
		},
		Telemetry: container.TelemetryConfig{
			Enabled:        c.Telemetry.Enabled,
			Stdout:         c.Telemetry.Stdout,
			ServiceName:    c.Telemetry.ServiceName,
			ServiceVersion: version,
			ExportInterval: c.Telemetry.ExportInterval,
			OTLPEndpoint:   c.Telemetry.OTLPEndpoint,
		},
	}
}
