package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/domain/tracking"
)

// TestNewService_ValidatesConfig verifies wiring fails on broken settings.
func TestNewService_ValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewService(&config.Config{})
	require.Error(t, err)

	svc, err := NewService(&config.Config{
		TelemetryURL: "https://telemetry.example.com",
	})
	require.NoError(t, err)

	t.Cleanup(svc.Close)

	status := svc.Status()
	require.False(t, status.Refresh.IsRunning)
	require.Zero(t, status.PendingDeliveries)
}

// TestContactsProvider verifies config contacts are filtered and resolved.
func TestContactsProvider(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Contacts: map[string][]config.Contact{
			"alex": {
				{Name: "Dana", Phone: "+15550100"},
				{Name: "NoPhone", Phone: ""},
			},
		},
	}

	provider := contactsProvider(cfg)

	contacts, err := provider(context.Background(), "alex")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	require.Equal(t, "Dana", contacts[0].Name)

	// Unknown people simply have no contacts.
	contacts, err = provider(context.Background(), "bo")
	require.NoError(t, err)
	require.Empty(t, contacts)
}

// TestDisabledSMS verifies the placeholder sender always fails.
func TestDisabledSMS(t *testing.T) {
	t.Parallel()

	_, err := disabledSMS{}.Send(context.Background(), tracking.PendingAlert{}, nil)
	require.ErrorIs(t, err, errSMSNotConfigured)
}
