// Package events provides the change feed of the biorecords API.
//
// Store change hooks publish record events to a Broker, which fans them
// out to the registered transports (WebSocket, SSE) and to the response
// cache invalidator through a common Subscriber interface.
package events

import (
	"time"

	"github.com/biorecords/biorecords/internal/store"
)

// EventType represents the type of change event.
type EventType string

// Event types.
const (
	// Record events (from store change hooks).
	RecordCreated EventType = "record.created"
	RecordUpdated EventType = "record.updated"
	RecordDeleted EventType = "record.deleted"

	// Client events (from transport layers).
	ClientConnected EventType = "client.connected"
)

// ForAction returns the record event type of a store action.
func ForAction(a store.Action) EventType {
	switch a {
	case store.ActionCreated:
		return RecordCreated
	case store.ActionDeleted:
		return RecordDeleted
	}
	return RecordUpdated
}

// RecordData is the payload of record events.
type RecordData struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// FromChange converts a committed store change into an event.
func FromChange(c store.Change, at time.Time) Event {
	return Event{
		Type:      ForAction(c.Action),
		Timestamp: at,
		Data:      RecordData{Resource: c.Resource, ID: c.ID},
	}
}

// Event represents a change event with type, timestamp, and data.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
