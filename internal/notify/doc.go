// Package notify contains the outbound delivery adapters: a local
// notification presenter backed by the logger and an HTTP webhook client for
// the SMS fallback gateway.
package notify
