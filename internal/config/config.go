package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Contact is one emergency contact entry in the settings file.
type Contact struct {
	// Name is the contact's display name.
	Name string `yaml:"name"`
	// Phone is the contact's phone number.
	Phone string `yaml:"phone"`
}

// Config holds parameters shared by the safety-tracker binaries.
type Config struct {
	// TelemetryURL is the base URL of the telemetry backend serving person snapshots.
	TelemetryURL string `yaml:"telemetry_url"`
	// TelemetryRequestsPerMinute caps outgoing telemetry requests.
	TelemetryRequestsPerMinute int `yaml:"telemetry_requests_per_minute"`
	// SMSGatewayURL is the webhook endpoint of the SMS fallback gateway.
	SMSGatewayURL string `yaml:"sms_gateway_url"`
	// WarningThreshold is how long a person must be stationary before a warning alert.
	WarningThreshold time.Duration `yaml:"warning_threshold"`
	// UrgentThreshold is how long a person must be stationary before an urgent alert.
	UrgentThreshold time.Duration `yaml:"urgent_threshold"`
	// AckTimeout is how long an alert may wait unacknowledged before a
	// delivery-not-confirmed warning is surfaced.
	AckTimeout time.Duration `yaml:"ack_timeout"`
	// SMSFallbackTimeout is how long an alert may wait unacknowledged before
	// it escalates to the SMS channel.
	SMSFallbackTimeout time.Duration `yaml:"sms_fallback_timeout"`
	// RefreshInterval is the sleep between telemetry poll iterations.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// EscalationInterval is the cadence of the delivery-assurance checker.
	EscalationInterval time.Duration `yaml:"escalation_interval"`
	// DebounceWindow suppresses duplicate pending-alert registration for the
	// same person and kind.
	DebounceWindow time.Duration `yaml:"debounce_window"`
	// RateLimitWindow is the minimum interval between share-link generations per person.
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	// CacheStaleWindow is the maximum age of a cached share link; staleness
	// always forces regeneration.
	CacheStaleWindow time.Duration `yaml:"cache_stale_window"`
	// MaxConsecutiveErrors is how many fetch failures in a row open the circuit breaker.
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors"`
	// Contacts maps a tracked person's ID to their emergency contacts.
	Contacts map[string][]Contact `yaml:"contacts"`
}

const (
	// DefaultConfigFilename is the default filename for monitor settings.
	DefaultConfigFilename = "safety-tracker-settings.yaml"

	// DefaultWarningThreshold is the default immobility duration before a warning.
	DefaultWarningThreshold = 120 * time.Second
	// DefaultUrgentThreshold is the default immobility duration before an urgent alert.
	DefaultUrgentThreshold = 300 * time.Second
	// DefaultAckTimeout is the default wait before a delivery-not-confirmed warning.
	DefaultAckTimeout = 30 * time.Second
	// DefaultSMSFallbackTimeout is the default wait before SMS escalation.
	DefaultSMSFallbackTimeout = 120 * time.Second
	// DefaultRefreshInterval is the default poll loop sleep.
	DefaultRefreshInterval = 10 * time.Second
	// DefaultEscalationInterval is the default delivery checker cadence.
	DefaultEscalationInterval = 10 * time.Second
	// DefaultDebounceWindow is the default duplicate-registration window.
	DefaultDebounceWindow = 60 * time.Second
	// DefaultRateLimitWindow is the default minimum interval between link generations.
	DefaultRateLimitWindow = 60 * time.Second
	// DefaultCacheStaleWindow is the default maximum age of a cached share link.
	DefaultCacheStaleWindow = 24 * time.Hour
	// DefaultMaxConsecutiveErrors is the default circuit-breaker limit.
	DefaultMaxConsecutiveErrors = 5
	// DefaultTelemetryRequestsPerMinute is the default telemetry request cap.
	DefaultTelemetryRequestsPerMinute = 60

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errTelemetryURLRequired is returned when the telemetry base URL is missing.
	errTelemetryURLRequired = errors.New("telemetry URL must be provided")
	// errThresholdOrder is returned when the warning threshold is not below the urgent one.
	errThresholdOrder = errors.New("warning threshold must be below urgent threshold")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting,
// filling unset values with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.TelemetryURL == "" {
		return errTelemetryURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.TelemetryURL); err != nil {
		return fmt.Errorf("invalid telemetry URL: %w", err)
	}

	if cfg.SMSGatewayURL != "" {
		if _, err := url.ParseRequestURI(cfg.SMSGatewayURL); err != nil {
			return fmt.Errorf("invalid SMS gateway URL: %w", err)
		}
	}

	applyDefaults(cfg)

	if cfg.WarningThreshold >= cfg.UrgentThreshold {
		return errThresholdOrder
	}

	return nil
}

// applyDefaults fills every unset duration and count with its default value.
func applyDefaults(cfg *Config) {
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}

	if cfg.UrgentThreshold <= 0 {
		cfg.UrgentThreshold = DefaultUrgentThreshold
	}

	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}

	if cfg.SMSFallbackTimeout <= 0 {
		cfg.SMSFallbackTimeout = DefaultSMSFallbackTimeout
	}

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	if cfg.EscalationInterval <= 0 {
		cfg.EscalationInterval = DefaultEscalationInterval
	}

	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}

	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = DefaultRateLimitWindow
	}

	if cfg.CacheStaleWindow <= 0 {
		cfg.CacheStaleWindow = DefaultCacheStaleWindow
	}

	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}

	if cfg.TelemetryRequestsPerMinute <= 0 {
		cfg.TelemetryRequestsPerMinute = DefaultTelemetryRequestsPerMinute
	}
}
