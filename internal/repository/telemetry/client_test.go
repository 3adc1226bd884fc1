package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/safety-tracker/internal/domain/tracking"
)

// TestNewClient_RequiresBaseURL verifies construction fails without a URL.
func TestNewClient_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", 60)
	require.Error(t, err)
}

// TestClient_Fetch verifies snapshot decoding from the backend wire format.
func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/people", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"people": []map[string]any{
				{
					"id":                 "alex",
					"name":               "Alex",
					"is_active":          true,
					"is_stationary":      true,
					"stationary_seconds": 125,
					"latitude":           40.7,
					"longitude":          -74.0,
					"timestamp":          ts,
				},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 600)
	require.NoError(t, err)

	snapshots, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	s := snapshots[0]
	require.Equal(t, "alex", s.ID)
	require.Equal(t, "Alex", s.Name)
	require.True(t, s.IsActive)
	require.True(t, s.IsStationary)
	require.Equal(t, 125*time.Second, s.StationaryFor)
	require.Equal(t, 40.7, s.Location.Latitude)
	require.True(t, ts.Equal(s.Timestamp))
}

// TestClient_Fetch_BackendError verifies non-200 responses surface as errors.
func TestClient_Fetch_BackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 600)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.Error(t, err)
}

// TestClient_RecordAlert verifies the remote record wire format.
func TestClient_RecordAlert(t *testing.T) {
	t.Parallel()

	var received map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/alerts", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 600)
	require.NoError(t, err)

	alert := tracking.PendingAlert{
		ID:         "a1",
		PersonID:   "alex",
		PersonName: "Alex",
		Kind:       tracking.AlertKindUrgent,
		SentAt:     time.Now().UTC(),
		Location:   tracking.Coordinates{Latitude: 40.7, Longitude: -74.0},
	}

	require.NoError(t, c.RecordAlert(context.Background(), alert))
	require.Equal(t, "a1", received["alert_id"])
	require.Equal(t, "urgent", received["kind"])
	require.Equal(t, "alex", received["person_id"])
}

// TestClient_Generate verifies share-link issuance and empty-URL rejection.
func TestClient_Generate(t *testing.T) {
	t.Parallel()

	url := "https://track.example.com/s/abc"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/share-links", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req["person_id"] == "alex" {
			_ = json.NewEncoder(w).Encode(map[string]string{"url": url})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, 600)
	require.NoError(t, err)

	got, err := c.Generate(context.Background(), "alex")
	require.NoError(t, err)
	require.Equal(t, url, got)

	_, err = c.Generate(context.Background(), "bo")
	require.Error(t, err)
}
