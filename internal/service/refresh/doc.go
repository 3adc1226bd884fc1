// Package refresh owns the telemetry polling loop shared by every UI
// observer.
//
// Observers register interest with StartWatching/StopWatching; the first
// registration starts the loop and the last deregistration stops it.
// Suspend/resume pause the loop across app lifecycle transitions without
// touching the watcher count. A circuit breaker halts the loop after
// sustained fetch failure and stays halted until an explicit restart, so an
// outage is surfaced instead of being masked by endless retries.
package refresh
