package tracking

import "time"

// Coordinates is a geographic point reported by the telemetry source.
type Coordinates struct {
	// Latitude in decimal degrees.
	Latitude float64
	// Longitude in decimal degrees.
	Longitude float64
}

// PersonSnapshot is one poll cycle's read of a tracked person's activity and
// location state. It is supplied by the telemetry source on every refresh and
// is not owned or persisted by this core.
type PersonSnapshot struct {
	// ID uniquely identifies the tracked person.
	ID string
	// Name is the person's display name.
	Name string
	// IsActive reports whether the person's device is delivering live telemetry.
	IsActive bool
	// IsStationary reports whether the person is currently immobile.
	IsStationary bool
	// StationaryFor is how long the current stationary episode has lasted.
	StationaryFor time.Duration
	// Location is the person's last reported position.
	Location Coordinates
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
}

// IsMoving reports confirmed movement: the device is active and the person is
// no longer stationary. Only confirmed movement may reset alert state; a
// silent device must never clear an alert on its own.
func (s *PersonSnapshot) IsMoving() bool {
	return s.IsActive && !s.IsStationary
}

// Contact is a phone-bearing emergency contact for a tracked person,
// resolved from the external relationship store.
type Contact struct {
	// Name is the contact's display name.
	Name string
	// Phone is the contact's phone number in a gateway-accepted format.
	Phone string
}
