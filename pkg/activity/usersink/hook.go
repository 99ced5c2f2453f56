// Package usersink forwards settings activity into a go-users
// ActivitySink, so key changes, flushes, and recoveries land in the
// same audit feed as the rest of an application's user activity.
package usersink

import (
	"context"
	"maps"

	"github.com/goliatone/go-settings/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook bridges the settings fan-out to one ActivitySink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify converts the event into an ActivityRecord and logs it. Events
// missing their identifiers are dropped, mirroring the fan-out in
// pkg/activity, so a Hook wired directly never logs half-formed
// records either.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.NormalizeEvent(event)
	if event.Verb == "" || event.ObjectType == "" || event.ObjectID == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, recordFromEvent(event))
}

// recordFromEvent maps the stringly-typed event IDs onto the UUID
// fields go-users expects. IDs that do not parse become uuid.Nil
// rather than failing the write. The event is already normalized, so
// OccurredAt is never zero here.
func recordFromEvent(event activity.Event) usertypes.ActivityRecord {
	var data map[string]any
	if len(event.Metadata) > 0 {
		data = maps.Clone(event.Metadata)
	}
	return usertypes.ActivityRecord{
		ActorID:    parseID(event.ActorID),
		UserID:     parseID(event.UserID),
		TenantID:   parseID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
		Data:       data,
	}
}

func parseID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
