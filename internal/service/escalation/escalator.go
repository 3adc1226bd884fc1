package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/domain/tracking"
	"github.com/oshokin/safety-tracker/internal/logger"
)

// SMSSender delivers a fallback message about the alert to the person's
// emergency contacts. Implementations are external collaborators.
type SMSSender interface {
	Send(ctx context.Context, alert tracking.PendingAlert, contacts []tracking.Contact) (tracking.SMSResult, error)
}

// ContactsProvider resolves the phone-bearing emergency contacts for a
// person, backed by the external relationship store.
type ContactsProvider func(ctx context.Context, personID string) ([]tracking.Contact, error)

// Escalator is the pending-alert registry plus the periodic checker that
// escalates unacknowledged alerts to the SMS channel.
type Escalator struct {
	// sms is the fallback delivery channel.
	sms SMSSender
	// contacts resolves emergency contacts per person.
	contacts ContactsProvider

	// ackTimeout is the wait before a delivery-not-confirmed warning.
	ackTimeout time.Duration
	// fallbackTimeout is the wait before SMS escalation.
	fallbackTimeout time.Duration
	// checkInterval is the checker cadence.
	checkInterval time.Duration
	// debounce suppresses duplicate registration per person+kind.
	debounce time.Duration

	// onNotConfirmed, when set, receives every delivery-not-confirmed event.
	onNotConfirmed func(alert tracking.PendingAlert, waited time.Duration)

	// now supplies the current time; injectable for tests.
	now func() time.Time

	// mu protects every field below.
	mu sync.Mutex
	// pending holds unacknowledged alerts keyed by alert ID.
	pending map[string]tracking.PendingAlert
	// triggered maps alert IDs that already escalated to their person ID,
	// guaranteeing at-most-once fallback under repeated ticks.
	triggered map[string]string
	// lastRegistered remembers the most recent registration per person+kind
	// for debouncing.
	lastRegistered map[tracking.PendingKey]time.Time
	// running reports whether a checker goroutine is active.
	running bool
	// stop cancels the current checker goroutine.
	stop context.CancelFunc
	// closed permanently disables the escalator.
	closed bool
	// deliveryIssues is set once a delivery warning or fallback occurred and
	// clears when no pending or escalated-unacknowledged alerts remain.
	deliveryIssues bool
}

// Option configures escalator behaviour.
type Option func(*Escalator)

// WithTimeouts overrides the acknowledgment and SMS fallback timeouts.
func WithTimeouts(ack, fallback time.Duration) Option {
	return func(e *Escalator) {
		if ack > 0 {
			e.ackTimeout = ack
		}

		if fallback > 0 {
			e.fallbackTimeout = fallback
		}
	}
}

// WithCheckInterval overrides the checker cadence.
func WithCheckInterval(interval time.Duration) Option {
	return func(e *Escalator) {
		if interval > 0 {
			e.checkInterval = interval
		}
	}
}

// WithDebounceWindow overrides the duplicate-registration window.
func WithDebounceWindow(window time.Duration) Option {
	return func(e *Escalator) {
		if window > 0 {
			e.debounce = window
		}
	}
}

// WithNotConfirmedHandler registers a callback for delivery-not-confirmed
// events, letting the UI surface them beyond the log.
func WithNotConfirmedHandler(fn func(alert tracking.PendingAlert, waited time.Duration)) Option {
	return func(e *Escalator) {
		e.onNotConfirmed = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Escalator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEscalator creates an escalator sending fallbacks through the provided
// SMS channel to contacts resolved by the provided provider.
func NewEscalator(sms SMSSender, contacts ContactsProvider, opts ...Option) *Escalator {
	e := &Escalator{
		sms:             sms,
		contacts:        contacts,
		ackTimeout:      config.DefaultAckTimeout,
		fallbackTimeout: config.DefaultSMSFallbackTimeout,
		checkInterval:   config.DefaultEscalationInterval,
		debounce:        config.DefaultDebounceWindow,
		now:             time.Now,
		pending:         make(map[string]tracking.PendingAlert),
		triggered:       make(map[string]string),
		lastRegistered:  make(map[tracking.PendingKey]time.Time),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Register inserts an alert into the pending set and lazily starts the
// checker. A second registration for the same person+kind inside the
// debounce window is dropped.
func (e *Escalator) Register(ctx context.Context, alert tracking.PendingAlert) {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return
	}

	key := alert.Key()

	if last, ok := e.lastRegistered[key]; ok && e.now().Sub(last) < e.debounce {
		e.mu.Unlock()

		logger.DebugKV(ctx, "Duplicate pending alert suppressed",
			"person_id", alert.PersonID, "kind", alert.Kind.String())

		return
	}

	e.lastRegistered[key] = e.now()
	e.pending[alert.ID] = alert

	e.ensureCheckerLocked(ctx)

	e.mu.Unlock()

	logger.InfoKV(ctx, "Pending alert registered",
		"alert_id", alert.ID, "person_id", alert.PersonID, "kind", alert.Kind.String())
}

// Acknowledge removes every pending alert for the person, not only the most
// recent, and clears the person's triggered-set entries.
func (e *Escalator) Acknowledge(ctx context.Context, personID string) {
	e.mu.Lock()

	removed := 0

	for id, alert := range e.pending {
		if alert.PersonID == personID {
			delete(e.pending, id)

			removed++
		}
	}

	for id, pid := range e.triggered {
		if pid == personID {
			delete(e.triggered, id)
		}
	}

	// A fresh episode after acknowledgment must not be debounced away.
	for key := range e.lastRegistered {
		if key.PersonID == personID {
			delete(e.lastRegistered, key)
		}
	}

	if len(e.pending) == 0 && len(e.triggered) == 0 {
		e.deliveryIssues = false
	}

	e.mu.Unlock()

	logger.InfoKV(ctx, "Alerts acknowledged",
		"person_id", personID, "removed", removed)
}

// PendingCount returns the number of alerts awaiting acknowledgment.
func (e *Escalator) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.pending)
}

// HasDeliveryIssues reports whether an alert went unconfirmed past the
// acknowledgment timeout and the situation has not been acknowledged yet.
func (e *Escalator) HasDeliveryIssues() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.deliveryIssues
}

// Close permanently stops the checker. Pending alerts are left in place for
// inspection; no further escalation occurs.
func (e *Escalator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true

	if e.stop != nil {
		e.stop()
		e.stop = nil
	}

	e.running = false
}

// ensureCheckerLocked starts the checker goroutine if none is running.
// Callers must hold mu. The checker lifetime is detached from the caller's
// context: a stopping poll loop must never take delivery assurance with it.
func (e *Escalator) ensureCheckerLocked(ctx context.Context) {
	if e.running {
		return
	}

	checkerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.stop = cancel
	e.running = true

	go e.run(checkerCtx)
}

// run is the periodic checker. It self-terminates when the pending set
// empties; the next registration starts a fresh instance.
func (e *Escalator) run(ctx context.Context) {
	ticker := time.NewTicker(e.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()

			return
		case <-ticker.C:
			e.checkPending(ctx)

			e.mu.Lock()
			if len(e.pending) == 0 {
				e.running = false

				if e.stop != nil {
					e.stop()
					e.stop = nil
				}

				e.mu.Unlock()

				logger.Debug(ctx, "Delivery checker idle, stopping")

				return
			}
			e.mu.Unlock()
		}
	}
}

// checkPending runs one checker pass. Deadlines are computed from each
// alert's send time at check time, so cadence jitter cannot skew them.
func (e *Escalator) checkPending(ctx context.Context) {
	now := e.now()

	var (
		warnings  []tracking.PendingAlert
		fallbacks []tracking.PendingAlert
	)

	e.mu.Lock()

	for id, alert := range e.pending {
		waited := now.Sub(alert.SentAt)

		if waited >= e.fallbackTimeout {
			if _, done := e.triggered[id]; !done {
				e.triggered[id] = alert.PersonID
				delete(e.pending, id)

				e.deliveryIssues = true

				fallbacks = append(fallbacks, alert)
			}

			continue
		}

		if waited >= e.ackTimeout {
			e.deliveryIssues = true

			warnings = append(warnings, alert)
		}
	}

	e.mu.Unlock()

	// Collaborator calls and callbacks happen outside the lock.
	for _, alert := range warnings {
		waited := now.Sub(alert.SentAt)

		logger.WarnKV(ctx, "Alert delivery not confirmed",
			"alert_id", alert.ID,
			"person_id", alert.PersonID,
			"kind", alert.Kind.String(),
			"waited", waited.String())

		if e.onNotConfirmed != nil {
			e.onNotConfirmed(alert, waited)
		}
	}

	for _, alert := range fallbacks {
		e.escalate(ctx, alert)
	}
}

// escalate sends the SMS fallback for one alert. The alert has already left
// the pending set; a failed send is logged but not retried.
func (e *Escalator) escalate(ctx context.Context, alert tracking.PendingAlert) {
	contacts, err := e.contacts(ctx, alert.PersonID)
	if err != nil {
		logger.ErrorKV(ctx, "Emergency contact lookup failed",
			"alert_id", alert.ID, "person_id", alert.PersonID, "error", err)

		return
	}

	if len(contacts) == 0 {
		logger.ErrorKV(ctx, "No emergency contacts for SMS fallback",
			"alert_id", alert.ID, "person_id", alert.PersonID)

		return
	}

	result, err := e.sms.Send(ctx, alert, contacts)
	if err != nil {
		logger.ErrorKV(ctx, "SMS fallback failed",
			"alert_id", alert.ID, "person_id", alert.PersonID, "error", err)

		return
	}

	logger.WarnKV(ctx, "Alert escalated to SMS fallback",
		"alert_id", alert.ID,
		"person_id", alert.PersonID,
		"kind", alert.Kind.String(),
		"notified", result.Notified,
		"failed", result.Failed)
}
