package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/safety-tracker/internal/domain/tracking"
	"github.com/oshokin/safety-tracker/internal/logger"
)

// smsRequestTimeout bounds every gateway call.
const smsRequestTimeout = 15 * time.Second

// errGatewayURLRequired is returned when the gateway is built without a URL.
var errGatewayURLRequired = errors.New("SMS gateway URL must be provided")

// SMSGateway delivers fallback messages through an HTTP webhook, one request
// per contact, reporting per-contact outcomes.
type SMSGateway struct {
	// httpClient performs the requests.
	httpClient *http.Client
	// url is the webhook endpoint.
	url string
}

// NewSMSGateway creates a gateway client for the provided webhook URL.
func NewSMSGateway(url string) (*SMSGateway, error) {
	if url == "" {
		return nil, errGatewayURLRequired
	}

	return &SMSGateway{
		httpClient: &http.Client{Timeout: smsRequestTimeout},
		url:        url,
	}, nil
}

// smsPayload is one webhook message.
type smsPayload struct {
	// To is the recipient phone number.
	To string `json:"to"`
	// Message is the text body.
	Message string `json:"message"`
}

// Send delivers the fallback message to every contact. Contacts the gateway
// rejected end up in the result's Failed list; the call errors only when no
// contact could be reached at all.
func (g *SMSGateway) Send(
	ctx context.Context,
	alert tracking.PendingAlert,
	contacts []tracking.Contact,
) (tracking.SMSResult, error) {
	var result tracking.SMSResult

	message := fallbackMessage(alert)

	for _, contact := range contacts {
		if err := g.sendOne(ctx, contact.Phone, message); err != nil {
			logger.WarnKV(ctx, "SMS delivery failed for contact",
				"alert_id", alert.ID, "contact", contact.Name, "error", err)

			result.Failed = append(result.Failed, contact.Name)

			continue
		}

		result.Notified = append(result.Notified, contact.Name)
	}

	if !result.Delivered() {
		return result, fmt.Errorf("sms fallback for alert %s: no contact reached", alert.ID)
	}

	return result, nil
}

// sendOne posts a single message to the webhook.
func (g *SMSGateway) sendOne(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(smsPayload{
		To:      phone,
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("marshal sms: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post sms: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post sms: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// fallbackMessage renders the SMS text for one alert.
func fallbackMessage(alert tracking.PendingAlert) string {
	return fmt.Sprintf(
		"Safety alert (%s): %s has not confirmed a %s notification sent at %s. Last known location: %.5f, %.5f.",
		alert.Kind.String(),
		alert.PersonName,
		alert.Kind.String(),
		alert.SentAt.Format(time.RFC3339),
		alert.Location.Latitude,
		alert.Location.Longitude,
	)
}
