package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPersonSnapshot_IsMoving verifies that only an active, non-stationary
// snapshot counts as confirmed movement.
func TestPersonSnapshot_IsMoving(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		active     bool
		stationary bool
		want       bool
	}{
		{name: "active and moving", active: true, stationary: false, want: true},
		{name: "active but stationary", active: true, stationary: true, want: false},
		{name: "silent device", active: false, stationary: false, want: false},
		{name: "silent and stationary", active: false, stationary: true, want: false},
	}

	for _, tc := range cases {
		s := &PersonSnapshot{
			ID:           "alex",
			IsActive:     tc.active,
			IsStationary: tc.stationary,
		}

		require.Equal(t, tc.want, s.IsMoving(), tc.name)
	}
}

// TestPendingAlert_Key verifies debounce keys collapse to person+kind.
func TestPendingAlert_Key(t *testing.T) {
	t.Parallel()

	first := &PendingAlert{
		ID:       "a1",
		PersonID: "alex",
		Kind:     AlertKindWarning,
		SentAt:   time.Unix(100, 0),
	}
	second := &PendingAlert{
		ID:       "a2",
		PersonID: "alex",
		Kind:     AlertKindWarning,
		SentAt:   time.Unix(200, 0),
	}

	require.Equal(t, first.Key(), second.Key())
	require.NotEqual(t, first.Key(), (&PendingAlert{PersonID: "alex", Kind: AlertKindUrgent}).Key())
}

// TestSMSResult_Delivered verifies delivery requires at least one notified contact.
func TestSMSResult_Delivered(t *testing.T) {
	t.Parallel()

	r := &SMSResult{Failed: []string{"mom"}}
	require.False(t, r.Delivered())

	r.Notified = append(r.Notified, "dad")
	require.True(t, r.Delivered())
}
