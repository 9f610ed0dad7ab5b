// Package realtime implements the change listener: it consumes the data
// service's push-based change feed and translates relation events into cache
// invalidations using a static dependency table.
package realtime

import "context"

// EventType classifies a change feed event
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"

	// EventReconnect marks a connection gap: the feed dropped and has been
	// re-established, so every dependent cache key must be treated as stale.
	EventReconnect EventType = "RECONNECT"
)

// ChangeEvent is one mutation notification from the data service.
// Delivery is at-least-once and unordered; consumers re-read current state
// rather than replaying the event payload.
type ChangeEvent struct {
	Relation string
	Type     EventType
}

// Feed produces change events. The websocket implementation talks to the
// data service; tests drive a channel-backed fake.
type Feed interface {
	// Events returns the stream of change events
	Events() <-chan ChangeEvent

	// Run connects and pumps events until the context is cancelled
	Run(ctx context.Context) error
}
