// Package backendtest is a reusable conformance suite for Backend
// implementations. Every adapter, whatever its storage or codec, must
// honor the same contract: absent stores load empty, writes replace the
// whole snapshot, loaded snapshots are detached copies, and snapshot ids
// survive the round trip. Adapter packages call Run from their own tests.
package backendtest

import (
	"context"
	"testing"

	settings "github.com/goliatone/go-settings"
)

// Factory builds a fresh, empty backend for one conformance case. Each
// invocation must yield isolated storage.
type Factory func(t *testing.T) settings.Backend

// Run drives a backend through the persistence contract.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("LoadEmpty", func(t *testing.T) {
		backend := factory(t)
		snap, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("load on fresh backend: %v", err)
		}
		if snap.Len() != 0 {
			t.Fatalf("expected empty snapshot, got %d records", snap.Len())
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		backend := factory(t)
		written := sampleSnapshot("round-trip-1")
		if err := backend.Write(context.Background(), written); err != nil {
			t.Fatalf("write: %v", err)
		}
		loaded, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		compareSnapshots(t, written, loaded)
	})

	t.Run("SnapshotIDPreserved", func(t *testing.T) {
		backend := factory(t)
		written := sampleSnapshot("generation-42")
		if err := backend.Write(context.Background(), written); err != nil {
			t.Fatalf("write: %v", err)
		}
		loaded, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.ID != "generation-42" {
			t.Fatalf("expected snapshot id %q, got %q", "generation-42", loaded.ID)
		}
	})

	t.Run("WriteReplacesWholeState", func(t *testing.T) {
		backend := factory(t)
		if err := backend.Write(context.Background(), sampleSnapshot("first")); err != nil {
			t.Fatalf("first write: %v", err)
		}
		second := settings.Snapshot{
			ID: "second",
			Records: []settings.Record{
				settings.NewRecord(settings.Path{"only"}, settings.String("survivor")),
			},
		}
		if err := backend.Write(context.Background(), second); err != nil {
			t.Fatalf("second write: %v", err)
		}
		loaded, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.Len() != 1 {
			t.Fatalf("expected full replacement with 1 record, got %d", loaded.Len())
		}
		if loaded.Records[0].Path != "only" {
			t.Fatalf("expected surviving record %q, got %q", "only", loaded.Records[0].Path)
		}
	})

	t.Run("LoadedSnapshotIsDetached", func(t *testing.T) {
		backend := factory(t)
		if err := backend.Write(context.Background(), sampleSnapshot("detached")); err != nil {
			t.Fatalf("write: %v", err)
		}
		first, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("first load: %v", err)
		}
		for i := range first.Records {
			first.Records[i].Text = "mutated"
		}
		second, err := backend.Load(context.Background())
		if err != nil {
			t.Fatalf("second load: %v", err)
		}
		for _, rec := range second.Records {
			if rec.Text == "mutated" {
				t.Fatalf("expected loads to return detached copies, mutation leaked into %q", rec.Path)
			}
		}
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		backend := factory(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := backend.Write(ctx, sampleSnapshot("canceled")); err == nil {
			t.Fatalf("expected write with canceled context to fail")
		}
		if _, err := backend.Load(ctx); err == nil {
			t.Fatalf("expected load with canceled context to fail")
		}
	})
}

// sampleSnapshot covers every kind, nested groups included.
func sampleSnapshot(id string) settings.Snapshot {
	return settings.Snapshot{
		ID: id,
		Records: []settings.Record{
			settings.NewRecord(settings.Path{"editor", "autosave"}, settings.Bool(true)),
			settings.NewRecord(settings.Path{"editor", "tab_width"}, settings.Int(4)),
			settings.NewRecord(settings.Path{"editor", "zoom"}, settings.Float(1.25)),
			settings.NewRecord(settings.Path{"plugins"}, settings.List(
				settings.String("linter"),
				settings.String("formatter"),
			)),
			settings.NewRecord(settings.Path{"shortcuts"}, settings.Map(map[string]settings.Value{
				"save": settings.String("ctrl+s"),
				"quit": settings.String("ctrl+q"),
			})),
			settings.NewRecord(settings.Path{"theme"}, settings.String("dark")),
		},
	}
}

func compareSnapshots(t *testing.T, want, got settings.Snapshot) {
	t.Helper()
	if got.ID != want.ID {
		t.Fatalf("snapshot id mismatch: expected %q, got %q", want.ID, got.ID)
	}
	if got.Len() != want.Len() {
		t.Fatalf("record count mismatch: expected %d, got %d", want.Len(), got.Len())
	}
	index := make(map[string]settings.Record, want.Len())
	for _, rec := range want.Records {
		index[rec.Path] = rec
	}
	for _, rec := range got.Records {
		expected, ok := index[rec.Path]
		if !ok {
			t.Fatalf("unexpected record %q in loaded snapshot", rec.Path)
		}
		if rec.Kind != expected.Kind {
			t.Fatalf("record %q kind mismatch: expected %s, got %s", rec.Path, expected.Kind, rec.Kind)
		}
		wantValue, err := expected.Value()
		if err != nil {
			t.Fatalf("decoding expected record %q: %v", rec.Path, err)
		}
		gotValue, err := rec.Value()
		if err != nil {
			t.Fatalf("decoding loaded record %q: %v", rec.Path, err)
		}
		if !gotValue.Equal(wantValue) {
			t.Fatalf("record %q value mismatch: expected %s, got %s", rec.Path, expected.Text, rec.Text)
		}
	}
}
