package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/domain/tracking"
	"github.com/oshokin/safety-tracker/internal/notify"
	"github.com/oshokin/safety-tracker/internal/repository/telemetry"
	"github.com/oshokin/safety-tracker/internal/service/escalation"
	"github.com/oshokin/safety-tracker/internal/service/refresh"
	"github.com/oshokin/safety-tracker/internal/service/safety"
	"github.com/oshokin/safety-tracker/internal/service/sharelink"
)

// errSMSNotConfigured is returned by the disabled SMS sender.
var errSMSNotConfigured = errors.New("SMS gateway is not configured")

// Status is the combined observable state of the daemon.
type Status struct {
	// Refresh is the coordinator's observable state.
	Refresh refresh.Status
	// PendingDeliveries is the number of alerts awaiting acknowledgment.
	PendingDeliveries int
	// HasDeliveryIssues reports unconfirmed alert deliveries.
	HasDeliveryIssues bool
}

// Service bundles the monitoring subsystems behind the operations the UI
// layer consumes.
type Service struct {
	// coordinator owns the telemetry polling loop.
	coordinator *refresh.Coordinator
	// engine drives per-person alert state.
	engine *safety.Engine
	// escalator provides delivery assurance.
	escalator *escalation.Escalator
	// links rate-limits share-link generation.
	links *sharelink.Limiter
	// local tracks outstanding local notifications.
	local *notify.LocalNotifier
}

// primaryNotifier bridges the alert engine onto the local presenter and the
// remote record store.
type primaryNotifier struct {
	// local presents local notifications.
	local *notify.LocalNotifier
	// remote stores alert records in the tracking backend.
	remote *telemetry.Client
}

// SendLocal presents a local notification.
func (n *primaryNotifier) SendLocal(ctx context.Context, kind tracking.AlertKind, snapshot tracking.PersonSnapshot) {
	n.local.Send(ctx, kind, snapshot)
}

// ClearLocal removes the person's outstanding local notifications.
func (n *primaryNotifier) ClearLocal(ctx context.Context, personID string) {
	n.local.Clear(ctx, personID)
}

// SendRemote stores the alert record in the remote store.
func (n *primaryNotifier) SendRemote(ctx context.Context, alert tracking.PendingAlert) error {
	return n.remote.RecordAlert(ctx, alert)
}

// disabledSMS is the fallback sender used when no gateway is configured.
// Escalations still leave the pending set; the failure is surfaced in logs.
type disabledSMS struct{}

// Send always fails: there is nowhere to deliver.
func (disabledSMS) Send(context.Context, tracking.PendingAlert, []tracking.Contact) (tracking.SMSResult, error) {
	return tracking.SMSResult{}, errSMSNotConfigured
}

// NewService wires the daemon's subsystems from validated configuration.
func NewService(cfg *config.Config) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	backend, err := telemetry.NewClient(cfg.TelemetryURL, cfg.TelemetryRequestsPerMinute)
	if err != nil {
		return nil, fmt.Errorf("telemetry client: %w", err)
	}

	var sms escalation.SMSSender = disabledSMS{}

	if cfg.SMSGatewayURL != "" {
		gateway, err := notify.NewSMSGateway(cfg.SMSGatewayURL)
		if err != nil {
			return nil, fmt.Errorf("sms gateway: %w", err)
		}

		sms = gateway
	}

	local := notify.NewLocalNotifier()

	escalator := escalation.NewEscalator(sms, contactsProvider(cfg),
		escalation.WithTimeouts(cfg.AckTimeout, cfg.SMSFallbackTimeout),
		escalation.WithCheckInterval(cfg.EscalationInterval),
		escalation.WithDebounceWindow(cfg.DebounceWindow),
	)

	engine := safety.NewEngine(
		&primaryNotifier{local: local, remote: backend},
		escalator,
		safety.WithThresholds(cfg.WarningThreshold, cfg.UrgentThreshold),
	)

	coordinator := refresh.NewCoordinator(backend, engine,
		refresh.WithInterval(cfg.RefreshInterval),
		refresh.WithMaxConsecutiveErrors(cfg.MaxConsecutiveErrors),
	)

	links := sharelink.NewLimiter(backend,
		sharelink.WithWindows(cfg.RateLimitWindow, cfg.CacheStaleWindow),
	)

	return &Service{
		coordinator: coordinator,
		engine:      engine,
		escalator:   escalator,
		links:       links,
		local:       local,
	}, nil
}

// contactsProvider resolves emergency contacts from the settings file,
// standing in for the external relationship store.
func contactsProvider(cfg *config.Config) escalation.ContactsProvider {
	// Copy so later config mutation cannot race the checker.
	contacts := make(map[string][]tracking.Contact, len(cfg.Contacts))
	for personID, entries := range cfg.Contacts {
		list := make([]tracking.Contact, 0, len(entries))
		for _, entry := range entries {
			if entry.Phone == "" {
				continue
			}

			list = append(list, tracking.Contact{
				Name:  entry.Name,
				Phone: entry.Phone,
			})
		}

		contacts[personID] = list
	}

	return func(_ context.Context, personID string) ([]tracking.Contact, error) {
		return contacts[personID], nil
	}
}

// StartWatching registers one refresh observer.
func (s *Service) StartWatching(ctx context.Context) {
	s.coordinator.StartWatching(ctx)
}

// StopWatching deregisters one refresh observer.
func (s *Service) StopWatching() {
	s.coordinator.StopWatching()
}

// SuspendForBackground pauses refresh across an app background transition.
func (s *Service) SuspendForBackground() {
	s.coordinator.SuspendForBackground()
}

// ResumeForForeground resumes refresh after a foreground transition.
func (s *Service) ResumeForForeground(ctx context.Context) {
	s.coordinator.ResumeForForeground(ctx)
}

// RestartIfNeeded clears the circuit breaker after sustained fetch failure.
func (s *Service) RestartIfNeeded(ctx context.Context) {
	s.coordinator.RestartIfNeeded(ctx)
}

// OnStatusChange registers a refresh status listener.
func (s *Service) OnStatusChange(fn func(refresh.Status)) {
	s.coordinator.OnStatusChange(fn)
}

// Dismiss is the explicit human action on an alert: it clears the person's
// alert flags and acknowledges every pending delivery.
func (s *Service) Dismiss(ctx context.Context, personID string) {
	s.engine.Dismiss(ctx, personID)
	s.escalator.Acknowledge(ctx, personID)
}

// Acknowledge confirms delivery of the person's alerts without touching
// their alert flags.
func (s *Service) Acknowledge(ctx context.Context, personID string) {
	s.escalator.Acknowledge(ctx, personID)
}

// HasWarning reports whether the person has a warning in the current episode.
func (s *Service) HasWarning(personID string) bool {
	return s.engine.HasWarning(personID)
}

// HasUrgentAlert reports whether the person has an urgent alert in the
// current episode.
func (s *Service) HasUrgentAlert(personID string) bool {
	return s.engine.HasUrgentAlert(personID)
}

// ShareLink returns the person's live-location link, cached per the rate
// limiter's windows.
func (s *Service) ShareLink(ctx context.Context, personID string) (string, error) {
	return s.links.Generate(ctx, personID)
}

// Status returns the daemon's combined observable state.
func (s *Service) Status() Status {
	return Status{
		Refresh:           s.coordinator.Status(),
		PendingDeliveries: s.escalator.PendingCount(),
		HasDeliveryIssues: s.escalator.HasDeliveryIssues(),
	}
}

// Close releases background resources.
func (s *Service) Close() {
	s.escalator.Close()
}
