package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HOOKMANAGER_LOGGER_LEVEL
const EnvPrefix = "HOOKMANAGER"

// Config holds all application configuration
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Memoize bool `mapstructure:"memoize"`
}

// CatalogConfig holds handler catalog configuration
type CatalogConfig struct {
	// ManifestPath is an optional YAML manifest overriding code defaults
	ManifestPath string `mapstructure:"manifest_path"`
}

// JournalConfig holds the sqlite failure journal configuration
type JournalConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Stdout         bool          `mapstructure:"stdout"`
	ServiceName    string        `mapstructure:"service_name"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	OTLPEndpoint   string        `mapstructure:"otlp_endpoint"`
}

// Load loads configuration from an optional YAML file and environment
// variables. An empty configPath uses defaults plus environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("dispatcher.memoize", true)

	v.SetDefault("catalog.manifest_path", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "data/hookmanager.db")
	v.SetDefault("journal.max_open_conns", 1)
	v.SetDefault("journal.retention", 7*24*time.Hour)
	v.SetDefault("journal.sweep_interval", time.Hour)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.stdout", true)
	v.SetDefault("telemetry.service_name", "hookmanager")
	v.SetDefault("telemetry.export_interval", 15*time.Second)
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// bindEnvVars binds the short environment aliases
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("logger.level", EnvPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("journal.path", EnvPrefix+"_JOURNAL_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logger.level must be one of debug, info, warn, error: %q", c.Logger.Level)
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console: %q", c.Logger.Format)
	}

	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path is required when the journal is enabled")
		}
		if c.Journal.Retention < 0 {
			return fmt.Errorf("journal.retention must not be negative")
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name is required when telemetry is enabled")
	}

	return nil
}
