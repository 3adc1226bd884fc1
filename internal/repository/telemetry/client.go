package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/domain/tracking"
)

const (
	// peoplePath serves the current snapshot list.
	peoplePath = "/v1/people"
	// alertsPath stores remote alert records.
	alertsPath = "/v1/alerts"
	// shareLinksPath issues signed live-location links.
	shareLinksPath = "/v1/share-links"

	// requestTimeout bounds every backend call.
	requestTimeout = 30 * time.Second

	// minutePerWindow converts a per-minute request cap to a per-second rate.
	minutePerWindow = 60.0
)

// errBaseURLRequired is returned when the client is built without a backend URL.
var errBaseURLRequired = errors.New("telemetry base URL must be provided")

// Client is the HTTP client for the tracking backend.
type Client struct {
	// httpClient performs the requests.
	httpClient *http.Client
	// baseURL is the backend base URL without a trailing slash.
	baseURL string
	// limiter throttles outgoing requests.
	limiter *rate.Limiter
}

// NewClient creates a telemetry client with request throttling.
func NewClient(baseURL string, requestsPerMinute int) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	if requestsPerMinute <= 0 {
		requestsPerMinute = config.DefaultTelemetryRequestsPerMinute
	}

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/minutePerWindow), 1),
	}, nil
}

// personPayload is the backend's wire representation of one snapshot.
type personPayload struct {
	// ID uniquely identifies the tracked person.
	ID string `json:"id"`
	// Name is the person's display name.
	Name string `json:"name"`
	// IsActive reports live telemetry delivery.
	IsActive bool `json:"is_active"`
	// IsStationary reports current immobility.
	IsStationary bool `json:"is_stationary"`
	// StationarySeconds is the current stationary episode length.
	StationarySeconds float64 `json:"stationary_seconds"`
	// Latitude of the last reported position.
	Latitude float64 `json:"latitude"`
	// Longitude of the last reported position.
	Longitude float64 `json:"longitude"`
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// peopleResponse is the backend's snapshot list wrapper.
type peopleResponse struct {
	// People is the snapshot list.
	People []personPayload `json:"people"`
}

// Fetch retrieves the current snapshot list of tracked people.
func (c *Client) Fetch(ctx context.Context) ([]tracking.PersonSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+peoplePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build people request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch people: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch people: unexpected status %d", resp.StatusCode)
	}

	var payload peopleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode people: %w", err)
	}

	snapshots := make([]tracking.PersonSnapshot, 0, len(payload.People))
	for _, p := range payload.People {
		snapshots = append(snapshots, tracking.PersonSnapshot{
			ID:            p.ID,
			Name:          p.Name,
			IsActive:      p.IsActive,
			IsStationary:  p.IsStationary,
			StationaryFor: time.Duration(p.StationarySeconds * float64(time.Second)),
			Location: tracking.Coordinates{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
			},
			Timestamp: p.Timestamp,
		})
	}

	return snapshots, nil
}

// alertPayload is the wire representation of a remote alert record.
type alertPayload struct {
	// AlertID uniquely identifies the escalation event.
	AlertID string `json:"alert_id"`
	// PersonID identifies the tracked person.
	PersonID string `json:"person_id"`
	// PersonName is the display name at send time.
	PersonName string `json:"person_name"`
	// Kind is the alert severity.
	Kind string `json:"kind"`
	// SentAt is when the primary notification was sent.
	SentAt time.Time `json:"sent_at"`
	// Latitude of the person at send time.
	Latitude float64 `json:"latitude"`
	// Longitude of the person at send time.
	Longitude float64 `json:"longitude"`
}

// RecordAlert stores the alert record in the remote store.
func (c *Client) RecordAlert(ctx context.Context, alert tracking.PendingAlert) error {
	payload := alertPayload{
		AlertID:    alert.ID,
		PersonID:   alert.PersonID,
		PersonName: alert.PersonName,
		Kind:       alert.Kind.String(),
		SentAt:     alert.SentAt,
		Latitude:   alert.Location.Latitude,
		Longitude:  alert.Location.Longitude,
	}

	return c.post(ctx, alertsPath, payload, nil)
}

// shareLinkRequest asks the backend for a signed live-location link.
type shareLinkRequest struct {
	// PersonID identifies the tracked person.
	PersonID string `json:"person_id"`
}

// shareLinkResponse carries the issued link.
type shareLinkResponse struct {
	// URL is the signed live-location link.
	URL string `json:"url"`
}

// Generate performs the external share-link generation call.
func (c *Client) Generate(ctx context.Context, personID string) (string, error) {
	var out shareLinkResponse

	err := c.post(ctx, shareLinksPath, shareLinkRequest{PersonID: personID}, &out)
	if err != nil {
		return "", err
	}

	if out.URL == "" {
		return "", fmt.Errorf("share link for %q: empty URL in response", personID)
	}

	return out.URL, nil
}

// post sends a JSON body to the backend and optionally decodes the response.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
