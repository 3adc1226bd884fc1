package safety

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/domain/tracking"
	"github.com/oshokin/safety-tracker/internal/logger"
)

// Notifier delivers alerts on the primary channels. Implementations are
// external collaborators (push presenter, remote record store).
type Notifier interface {
	// SendLocal presents a local notification for the person.
	SendLocal(ctx context.Context, kind tracking.AlertKind, snapshot tracking.PersonSnapshot)
	// ClearLocal removes any outstanding local notifications for the person.
	ClearLocal(ctx context.Context, personID string)
	// SendRemote stores the alert record in the remote store.
	SendRemote(ctx context.Context, alert tracking.PendingAlert) error
}

// Registry receives every sent alert for delivery assurance.
type Registry interface {
	Register(ctx context.Context, alert tracking.PendingAlert)
}

// personFlags tracks which alerts have been sent in the person's current
// stationary episode.
type personFlags struct {
	// warningSent marks the warning alert as already delivered.
	warningSent bool
	// urgentSent marks the urgent alert as already delivered.
	urgentSent bool
}

// Engine consumes telemetry snapshots and drives per-person alert state.
type Engine struct {
	// notifier delivers primary notifications.
	notifier Notifier
	// registry tracks sent alerts for delivery assurance.
	registry Registry

	// warningThreshold is the immobility duration before a warning alert.
	warningThreshold time.Duration
	// urgentThreshold is the immobility duration before an urgent alert.
	urgentThreshold time.Duration

	// mu protects flags.
	mu sync.Mutex
	// flags holds per-person episode state, keyed by person ID.
	flags map[string]*personFlags

	// now supplies the current time; injectable for tests.
	now func() time.Time
}

// Option configures engine behaviour.
type Option func(*Engine)

// WithThresholds overrides the warning and urgent immobility thresholds.
func WithThresholds(warning, urgent time.Duration) Option {
	return func(e *Engine) {
		if warning > 0 {
			e.warningThreshold = warning
		}

		if urgent > 0 {
			e.urgentThreshold = urgent
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine sending through the provided notifier and
// registering every alert with the provided registry.
func NewEngine(notifier Notifier, registry Registry, opts ...Option) *Engine {
	e := &Engine{
		notifier:         notifier,
		registry:         registry,
		warningThreshold: config.DefaultWarningThreshold,
		urgentThreshold:  config.DefaultUrgentThreshold,
		flags:            make(map[string]*personFlags),
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// escalation is one alert decision made during an Evaluate pass.
type escalation struct {
	// kind is the decided severity.
	kind tracking.AlertKind
	// snapshot is the telemetry the decision was made from.
	snapshot tracking.PersonSnapshot
}

// Evaluate processes one poll cycle's snapshot list. Alert decisions for all
// people are made before any resolved alert is cleared, so a person can
// never be both newly flagged and cleared in the same pass. People missing
// from the list keep their flags untouched.
func (e *Engine) Evaluate(ctx context.Context, snapshots []tracking.PersonSnapshot) {
	var (
		escalations []escalation
		cleared     []tracking.PersonSnapshot
	)

	e.mu.Lock()

	// Alert phase: escalate every stationary person whose episode has
	// crossed an unsent threshold.
	for _, s := range snapshots {
		if !s.IsStationary {
			continue
		}

		f := e.flags[s.ID]
		if f == nil {
			f = new(personFlags)
			e.flags[s.ID] = f
		}

		switch {
		case s.StationaryFor >= e.urgentThreshold && !f.urgentSent:
			f.urgentSent = true

			escalations = append(escalations, escalation{kind: tracking.AlertKindUrgent, snapshot: s})
		case s.StationaryFor >= e.warningThreshold && !f.warningSent && !f.urgentSent:
			f.warningSent = true

			escalations = append(escalations, escalation{kind: tracking.AlertKindWarning, snapshot: s})
		}
	}

	// Clear phase: only confirmed movement resets episode state.
	for _, s := range snapshots {
		if !s.IsMoving() {
			continue
		}

		f := e.flags[s.ID]
		if f == nil || (!f.warningSent && !f.urgentSent) {
			continue
		}

		delete(e.flags, s.ID)

		cleared = append(cleared, s)
	}

	e.mu.Unlock()

	// Collaborator calls happen outside the lock.
	for _, esc := range escalations {
		e.send(ctx, esc.kind, esc.snapshot)
	}

	for _, s := range cleared {
		e.notifier.ClearLocal(ctx, s.ID)

		logger.InfoKV(ctx, "Alert state cleared on confirmed movement",
			"person_id", s.ID, "person_name", s.Name)
	}
}

// Dismiss unconditionally clears the person's alert flags and outstanding
// local notifications. It represents an explicit human action and overrides
// the automatic logic.
func (e *Engine) Dismiss(ctx context.Context, personID string) {
	e.mu.Lock()

	_, flagged := e.flags[personID]
	delete(e.flags, personID)

	e.mu.Unlock()

	if !flagged {
		return
	}

	e.notifier.ClearLocal(ctx, personID)

	logger.InfoKV(ctx, "Alert state dismissed", "person_id", personID)
}

// HasWarning reports whether a warning alert was sent in the person's
// current stationary episode.
func (e *Engine) HasWarning(personID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.flags[personID]

	return f != nil && f.warningSent
}

// HasUrgentAlert reports whether an urgent alert was sent in the person's
// current stationary episode.
func (e *Engine) HasUrgentAlert(personID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.flags[personID]

	return f != nil && f.urgentSent
}

// send delivers one alert: a local notification, a pending-alert
// registration for delivery assurance, and an asynchronous remote record.
func (e *Engine) send(ctx context.Context, kind tracking.AlertKind, snapshot tracking.PersonSnapshot) {
	e.notifier.SendLocal(ctx, kind, snapshot)

	alert := tracking.PendingAlert{
		ID:         uuid.NewString(),
		PersonID:   snapshot.ID,
		PersonName: snapshot.Name,
		Kind:       kind,
		SentAt:     e.now(),
		Location:   snapshot.Location,
	}

	e.registry.Register(ctx, alert)

	logger.WarnKV(ctx, "Safety alert sent",
		"alert_id", alert.ID,
		"person_id", alert.PersonID,
		"kind", kind.String(),
		"stationary_for", snapshot.StationaryFor.String())

	// The record must survive poll loop shutdown; detach from its cancellation.
	recordCtx := context.WithoutCancel(ctx)

	go func() {
		if err := e.notifier.SendRemote(recordCtx, alert); err != nil {
			logger.ErrorKV(recordCtx, "Remote alert record failed",
				"alert_id", alert.ID, "error", err)
		}
	}()
}
