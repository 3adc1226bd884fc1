// Package monitor is the composition root of the safety-monitor daemon.
//
// It wires the telemetry client, notification adapters, escalator, alert
// engine, and refresh coordinator into one explicitly constructed Service
// without shared singletons, and exposes the operations the UI layer calls:
// watch registration, lifecycle suspend/resume, dismissal, acknowledgment,
// share-link generation, and status queries.
package monitor
