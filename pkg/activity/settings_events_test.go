package activity

import "testing"

func TestBuildKeyChangedEventShapesMetadata(t *testing.T) {
	evt := BuildKeyChangedEvent(EventInput{
		Path:     "window/width",
		OldValue: int64(640),
		NewValue: int64(800),
		ActorID:  " actor ",
	})

	if evt.Verb != VerbKeyChanged {
		t.Fatalf("expected verb %q, got %q", VerbKeyChanged, evt.Verb)
	}
	if evt.ObjectType != ObjectTypeKey || evt.ObjectID != "window/width" {
		t.Fatalf("unexpected object fields: %+v", evt)
	}
	if evt.ActorID != "actor" {
		t.Fatalf("expected trimmed actor, got %q", evt.ActorID)
	}
	if evt.Metadata["path"] != "window/width" {
		t.Fatalf("expected path in metadata, got %+v", evt.Metadata)
	}
	if evt.Metadata["old_value"] != int64(640) || evt.Metadata["new_value"] != int64(800) {
		t.Fatalf("expected value transition in metadata, got %+v", evt.Metadata)
	}
}

func TestBuildKeyRemovedEventMarksSubtree(t *testing.T) {
	evt := BuildKeyRemovedEvent(EventInput{Path: "window", Subtree: true})
	if evt.Verb != VerbKeyRemoved {
		t.Fatalf("expected verb %q, got %q", VerbKeyRemoved, evt.Verb)
	}
	if evt.Metadata["subtree"] != true {
		t.Fatalf("expected subtree marker, got %+v", evt.Metadata)
	}
}

func TestBuildFlushedEventUsesSnapshotID(t *testing.T) {
	evt := BuildFlushedEvent(EventInput{SnapshotID: "snap-9"})
	if evt.ObjectType != ObjectTypeSnapshot {
		t.Fatalf("expected object type %q, got %q", ObjectTypeSnapshot, evt.ObjectType)
	}
	if evt.ObjectID != "snap-9" {
		t.Fatalf("expected snapshot id as object id, got %q", evt.ObjectID)
	}
	if evt.Metadata["snapshot_id"] != "snap-9" {
		t.Fatalf("expected snapshot id in metadata, got %+v", evt.Metadata)
	}
}

func TestBuildRecoveredEventFallsBackToObjectType(t *testing.T) {
	evt := BuildRecoveredEvent(EventInput{Reason: "corrupt store"})
	if evt.ObjectID != ObjectTypeStore {
		t.Fatalf("expected object type fallback, got %q", evt.ObjectID)
	}
	if evt.Metadata["reason"] != "corrupt store" {
		t.Fatalf("expected reason in metadata, got %+v", evt.Metadata)
	}
}

func TestBuildEventDoesNotMutateCallerMetadata(t *testing.T) {
	meta := map[string]any{"origin": "test"}
	evt := BuildKeyChangedEvent(EventInput{Path: "theme", NewValue: "dark", Metadata: meta})
	if evt.Metadata["origin"] != "test" {
		t.Fatalf("expected caller metadata carried, got %+v", evt.Metadata)
	}
	if _, ok := meta["path"]; ok {
		t.Fatalf("expected caller map untouched, got %+v", meta)
	}
}
