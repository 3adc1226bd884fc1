package monitor

import (
	"context"
	"fmt"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/logger"
	"github.com/oshokin/safety-tracker/internal/service/refresh"
)

// Options controls the safety-monitor daemon and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// TelemetryURL provides an optional backend URL override.
	TelemetryURL string
}

// Run starts the monitor daemon and blocks until the context is canceled.
// Loads configuration first, wires the service, then registers the daemon's
// own watcher so polling starts immediately.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "safety-monitor")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Determine backend URL: command line argument overrides config.
	if opts.TelemetryURL != "" {
		cfg.TelemetryURL = opts.TelemetryURL
	}

	svc, err := NewService(cfg)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	defer svc.Close()

	// Surface circuit-breaker transitions prominently.
	svc.OnStatusChange(func(status refresh.Status) {
		if status.Stopped {
			logger.ErrorKV(ctx, "Refresh halted, manual restart required",
				"message", status.StoppedMessage)
		}
	})

	logger.InfoKV(ctx, "Monitoring started",
		"telemetry_url", cfg.TelemetryURL,
		"refresh_interval", cfg.RefreshInterval.String(),
		"warning_threshold", cfg.WarningThreshold.String(),
		"urgent_threshold", cfg.UrgentThreshold.String())

	svc.StartWatching(ctx)
	defer svc.StopWatching()

	<-ctx.Done()

	logger.Info(ctx, "Context canceled, exiting")

	return nil
}
