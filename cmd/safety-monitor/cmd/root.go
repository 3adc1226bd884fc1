package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/logger"
	"github.com/oshokin/safety-tracker/internal/service/monitor"
	"github.com/oshokin/safety-tracker/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel sets the minimum logging level.
	logLevel string

	// rootCmd represents the base command for running the monitor daemon.
	rootCmd = &cobra.Command{
		Use:   "safety-monitor [telemetry-url]",
		Short: "Run the safety-monitoring daemon.",
		Long: `Starts the safety-monitoring daemon that polls the tracking backend,
escalates immobility alerts, and assures delivery through the SMS fallback.

The telemetry backend URL comes from the configuration file and can be
overridden by providing it as an argument. Warning and urgent thresholds,
delivery timeouts, and emergency contacts are all configured in the same
file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use telemetry URL argument if provided, otherwise rely on config.
			var telemetryURL string
			if len(args) > 0 {
				telemetryURL = args[0]
			}

			options := &monitor.Options{
				ConfigPath:   configPath,
				TelemetryURL: telemetryURL,
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the safety-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "minimum logging level (debug, info, warn, error)")
}
