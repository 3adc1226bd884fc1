package tracking

import "time"

// AlertKind is the severity of a safety alert.
type AlertKind string

const (
	// AlertKindWarning is the first escalation step of a stationary episode.
	AlertKindWarning AlertKind = "warning"
	// AlertKindUrgent is the final escalation step of a stationary episode.
	AlertKindUrgent AlertKind = "urgent"
)

// String returns the kind's wire/log representation.
func (k AlertKind) String() string {
	return string(k)
}

// PendingKey is the person+kind pair used to debounce duplicate
// pending-alert registrations.
type PendingKey struct {
	// PersonID identifies the tracked person the alert concerns.
	PersonID string
	// Kind is the alert severity.
	Kind AlertKind
}

// PendingAlert is an alert that has been sent on the primary channel and is
// awaiting acknowledgment. It is created once per escalation event and is
// removed either by acknowledgment or by fallback escalation, whichever
// occurs first.
type PendingAlert struct {
	// ID uniquely identifies this escalation event.
	ID string
	// PersonID identifies the tracked person the alert concerns.
	PersonID string
	// PersonName is the person's display name at send time.
	PersonName string
	// Kind is the alert severity.
	Kind AlertKind
	// SentAt is when the primary notification was sent. Acknowledgment and
	// fallback deadlines are wall-clock offsets from this instant.
	SentAt time.Time
	// Location is the person's position at send time.
	Location Coordinates
}

// Key returns the person+kind pair used to debounce duplicate registrations.
func (a *PendingAlert) Key() PendingKey {
	return PendingKey{
		PersonID: a.PersonID,
		Kind:     a.Kind,
	}
}

// SMSResult reports the per-contact outcome of a fallback SMS send.
type SMSResult struct {
	// Notified lists contacts the gateway accepted the message for.
	Notified []string
	// Failed lists contacts the gateway rejected or could not reach.
	Failed []string
}

// Delivered reports whether at least one contact received the fallback.
func (r *SMSResult) Delivered() bool {
	return len(r.Notified) > 0
}
