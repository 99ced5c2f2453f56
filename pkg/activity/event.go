// Package activity normalizes settings lifecycle events and fans them
// out to pluggable hooks. The facade emits through an Emitter so
// installations without hooks pay nothing beyond a nil check.
package activity

import (
	"maps"
	"strings"
	"time"
)

// Event is one settings lifecycle occurrence. IDs are plain strings so
// call sites are not coupled to a particular UUID type; sinks that need
// typed IDs parse them on their side.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ready reports whether the event carries the identifiers every sink
// relies on. Incomplete events are dropped instead of delivered
// half-formed.
func (e Event) ready() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// NormalizeEvent returns a copy of event with identifier fields trimmed,
// metadata detached from the caller's map, and OccurredAt stamped when
// the caller left it zero.
func NormalizeEvent(event Event) Event {
	event.Verb = strings.TrimSpace(event.Verb)
	event.ActorID = strings.TrimSpace(event.ActorID)
	event.UserID = strings.TrimSpace(event.UserID)
	event.TenantID = strings.TrimSpace(event.TenantID)
	event.ObjectType = strings.TrimSpace(event.ObjectType)
	event.ObjectID = strings.TrimSpace(event.ObjectID)
	event.Channel = strings.TrimSpace(event.Channel)
	event.Metadata = detachMetadata(event.Metadata)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

// detachMetadata copies meta so later mutation on either side stays
// invisible to the other. Empty input collapses to nil.
func detachMetadata(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	return maps.Clone(meta)
}
