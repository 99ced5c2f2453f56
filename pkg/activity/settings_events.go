package activity

import (
	"strings"
	"time"
)

// Event vocabulary for the settings lifecycle. Key events carry the key
// path as object id; snapshot events carry the snapshot id.
const (
	VerbKeyChanged = "settings.key.changed"
	VerbKeyRemoved = "settings.key.removed"
	VerbFlushed    = "settings.flushed"
	VerbSynced     = "settings.synced"
	VerbCleared    = "settings.cleared"
	VerbRecovered  = "settings.recovered"

	ObjectTypeKey      = "settings.key"
	ObjectTypeSnapshot = "settings.snapshot"
	ObjectTypeStore    = "settings.store"
)

// EventInput describes the common fields for settings lifecycle events.
type EventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	Path       string
	OldValue   any
	NewValue   any
	SnapshotID string
	Subtree    bool
	Reason     string
	OccurredAt time.Time
}

// BuildKeyChangedEvent constructs a normalized event for a key write.
func BuildKeyChangedEvent(input EventInput) Event {
	return buildSettingsEvent(VerbKeyChanged, ObjectTypeKey, input)
}

// BuildKeyRemovedEvent constructs a normalized event for a key or subtree
// removal.
func BuildKeyRemovedEvent(input EventInput) Event {
	return buildSettingsEvent(VerbKeyRemoved, ObjectTypeKey, input)
}

// BuildFlushedEvent constructs an event describing a completed flush.
func BuildFlushedEvent(input EventInput) Event {
	return buildSettingsEvent(VerbFlushed, ObjectTypeSnapshot, input)
}

// BuildSyncedEvent constructs an event describing a completed sync merge.
func BuildSyncedEvent(input EventInput) Event {
	return buildSettingsEvent(VerbSynced, ObjectTypeSnapshot, input)
}

// BuildClearedEvent constructs an event describing a full tree clear.
func BuildClearedEvent(input EventInput) Event {
	return buildSettingsEvent(VerbCleared, ObjectTypeStore, input)
}

// BuildRecoveredEvent constructs an event describing recovery from a
// corrupt store.
func BuildRecoveredEvent(input EventInput) Event {
	return buildSettingsEvent(VerbRecovered, ObjectTypeStore, input)
}

func buildSettingsEvent(verb, objectType string, input EventInput) Event {
	metadata := detachMetadata(input.Metadata)
	annotate := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.Path != "" {
		annotate("path", input.Path)
	}
	if input.SnapshotID != "" {
		annotate("snapshot_id", input.SnapshotID)
	}
	if input.OldValue != nil {
		annotate("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		annotate("new_value", input.NewValue)
	}
	if input.Subtree {
		annotate("subtree", true)
	}
	if input.Reason != "" {
		annotate("reason", input.Reason)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectIDFor(objectType, input),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// objectIDFor picks the most specific identity available: the key
// path, then the snapshot id, then the object type itself.
func objectIDFor(objectType string, input EventInput) string {
	if path := strings.TrimSpace(input.Path); path != "" {
		return path
	}
	if id := strings.TrimSpace(input.SnapshotID); id != "" {
		return id
	}
	return objectType
}
