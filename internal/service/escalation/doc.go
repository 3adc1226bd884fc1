// Package escalation provides the delivery-assurance layer for safety
// alerts.
//
// Every alert sent on the primary channel is registered here and watched by
// a lazily started periodic checker. An alert unacknowledged past the
// acknowledgment timeout surfaces a repeatable "delivery not confirmed"
// warning; past the fallback timeout it escalates to the SMS channel exactly
// once, tracked by alert ID so repeated checker ticks can never double-send.
// Deadlines are wall-clock offsets from each alert's send time, so
// correctness does not depend on checker cadence jitter.
package escalation
