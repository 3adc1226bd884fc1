// Package telemetry implements the HTTP client for the remote tracking
// backend.
//
// It fetches person snapshots for the refresh loop, stores remote alert
// records, and performs share-link generation. Outgoing requests are
// throttled with a token-bucket limiter so a fast poll cadence can never
// hammer the backend.
package telemetry
