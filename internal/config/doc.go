// Package config loads and validates the YAML settings shared by the
// safety-tracker binaries.
//
// It carries the monitoring thresholds (warning/urgent immobility
// durations), delivery-assurance timeouts, refresh cadence, circuit-breaker
// limit, share-link rate-limit windows, collaborator endpoints, and the
// per-person emergency contact list used by the SMS fallback channel.
package config
