package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, format validations, and defaulting.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing telemetry URL.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Bad telemetry URL.
	cfg = &Config{
		TelemetryURL: "not a url",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Bad SMS gateway URL.
	cfg = &Config{
		TelemetryURL:  "https://telemetry.example.com",
		SMSGatewayURL: "::broken::",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Inverted thresholds.
	cfg = &Config{
		TelemetryURL:     "https://telemetry.example.com",
		WarningThreshold: 300 * time.Second,
		UrgentThreshold:  120 * time.Second,
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Valid config gets defaults filled in.
	cfg = &Config{
		TelemetryURL:  "https://telemetry.example.com",
		SMSGatewayURL: "https://sms.example.com/webhook",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultWarningThreshold, cfg.WarningThreshold)
	require.Equal(t, DefaultUrgentThreshold, cfg.UrgentThreshold)
	require.Equal(t, DefaultAckTimeout, cfg.AckTimeout)
	require.Equal(t, DefaultSMSFallbackTimeout, cfg.SMSFallbackTimeout)
	require.Equal(t, DefaultRefreshInterval, cfg.RefreshInterval)
	require.Equal(t, DefaultMaxConsecutiveErrors, cfg.MaxConsecutiveErrors)
	require.Equal(t, DefaultCacheStaleWindow, cfg.CacheStaleWindow)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	original := &Config{
		TelemetryURL:       "https://telemetry.example.com",
		SMSGatewayURL:      "https://sms.example.com/webhook",
		WarningThreshold:   90 * time.Second,
		UrgentThreshold:    240 * time.Second,
		RefreshInterval:    5 * time.Second,
		Contacts: map[string][]Contact{
			"alex": {
				{Name: "Dana", Phone: "+15550100"},
			},
		},
	}

	require.NoError(t, Save(path, original))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, original.TelemetryURL, loaded.TelemetryURL)
	require.Equal(t, 90*time.Second, loaded.WarningThreshold)
	require.Equal(t, 240*time.Second, loaded.UrgentThreshold)
	require.Equal(t, original.Contacts, loaded.Contacts)

	// Defaults were applied to fields left unset.
	require.Equal(t, DefaultAckTimeout, loaded.AckTimeout)
	require.Equal(t, DefaultEscalationInterval, loaded.EscalationInterval)
}

// TestLoad_MissingFile verifies a useful error for an absent settings file.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestSave_NilConfig verifies nil configs are rejected.
func TestSave_NilConfig(t *testing.T) {
	t.Parallel()

	require.Error(t, Save("anywhere.yaml", nil))
}
