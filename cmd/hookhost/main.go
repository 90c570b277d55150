// Package main provides hookhost, a host process that loads the bundled
// handlers and dispatches hooks through them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/hookmanager/internal/config"
	"github.com/garyjia/hookmanager/internal/container"
	"github.com/garyjia/hookmanager/pkg/utils"
)

const version = "1.0.0"

// Global flags
var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "hookhost",
	Short: "Dispatch hooks through registered handlers",
	Long: `hookhost loads the bundled hook handlers, applies the optional manifest
and dispatches events through them.

Examples:
  hookhost demo                        # Run invoke, invoke_all and alter
  hookhost handlers theme              # Show resolved order for event_theme
  hookhost failures --limit 20         # Show journaled handler failures`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (defaults and environment only if empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(handlersCmd)
	rootCmd.AddCommand(failuresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is a started container plus its logger
type app struct {
	logger    *zap.Logger
	container *container.Container
}

// startApp loads configuration, builds the logger and starts the container
func startApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting hookhost", zap.String("version", version))

	c, err := container.NewContainer(cfg.ToContainerConfig(version), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	return &app{logger: logger, container: c}, nil
}

func (a *app) close() {
	if err := a.container.Close(); err != nil {
		a.logger.Error("Failed to close container", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
