// Package container wires the hook catalog, dispatcher, host surface and
// side-channels, with ordered initialization and reverse-order teardown.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container
type Config struct {
	Dispatcher DispatcherConfig
	Catalog    CatalogConfig
	Journal    JournalConfig
	Telemetry  TelemetryConfig
}

// DispatcherConfig holds dispatcher settings
type DispatcherConfig struct {
	// Memoize caches resolved handler order per event
	Memoize bool
}

// CatalogConfig holds handler catalog settings
type CatalogConfig struct {
	// ManifestPath is an optional YAML manifest applied over code defaults
	ManifestPath string
}

// JournalConfig holds failure journal settings
type JournalConfig struct {
	Enabled      bool
	Path         string
	MaxOpenConns int

	// Retention is how long failures are kept; zero keeps everything
	Retention time.Duration

	// SweepInterval is how often expired failures are purged while running
	SweepInterval time.Duration
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled        bool
	Stdout         bool
	ServiceName    string
	ServiceVersion string
	ExportInterval time.Duration
	OTLPEndpoint   string
}

// DefaultConfig returns a configuration with memoization on and every
// side-channel other than logging off
func DefaultConfig() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{Memoize: true},
		Journal: JournalConfig{
			Path:          "data/hookmanager.db",
			MaxOpenConns:  1,
			Retention:     7 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Telemetry: TelemetryConfig{
			Stdout:      true,
			ServiceName: "hookmanager",
		},
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}
	if c.Journal.Retention < 0 {
		return fmt.Errorf("journal retention must not be negative")
	}
	if c.Journal.SweepInterval < 0 {
		return fmt.Errorf("journal sweep interval must not be negative")
	}
	return nil
}
