// Package safety drives the per-person alert state machine.
//
// Each telemetry pass escalates stationary people through warning and urgent
// alerts, at most once per stationary episode, and clears flags only on
// confirmed movement or explicit dismissal. A person vanishing from the
// snapshot list keeps their flags: a silent device can mean a real emergency
// in progress, so absence of telemetry must never look like recovery.
package safety
