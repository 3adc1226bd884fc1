// Package tracking contains core domain types for the safety-monitoring
// business logic.
//
// It defines PersonSnapshot (one poll cycle's read of a tracked person),
// AlertKind and PendingAlert (alerts awaiting delivery confirmation), and the
// Contact/SMSResult types used by the SMS fallback channel. Snapshots are
// ephemeral inputs supplied on every refresh; this core never persists them.
package tracking
