package settings

import (
	"context"
	"errors"
	"testing"
)

func seededBackend(records ...Record) *MemoryBackend {
	backend := NewMemoryBackend()
	backend.Seed(Snapshot{ID: "fb-1", Records: records})
	return backend
}

func TestFallbackAnswersMissedReads(t *testing.T) {
	system := seededBackend(
		NewRecord(Path{"editor", "theme"}, String("system-default")),
		NewRecord(Path{"network", "proxy"}, String("proxy.corp:3128")),
	)
	s := newMemorySettings(t, WithFallback("system", system))

	proxy, err := s.String("network/proxy")
	if err != nil || proxy != "proxy.corp:3128" {
		t.Fatalf("expected fallback value, got %q err %v", proxy, err)
	}

	// A local write shadows the fallback without modifying it.
	if err := s.Set("editor/theme", "dark"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	theme, _ := s.String("editor/theme")
	if theme != "dark" {
		t.Fatalf("local write must shadow the fallback, got %q", theme)
	}

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := system.Load(context.Background())
	for _, rec := range snap.Records {
		if rec.Path == "editor/theme" && rec.Text != "system-default" {
			t.Fatalf("fallback source must never be written, got %+v", rec)
		}
	}
}

func TestFallbacksSearchInRegistrationOrder(t *testing.T) {
	first := seededBackend(NewRecord(Path{"key"}, String("first")))
	second := seededBackend(
		NewRecord(Path{"key"}, String("second")),
		NewRecord(Path{"only", "second"}, Int(2)),
	)
	s := newMemorySettings(t,
		WithFallback("first", first),
		WithFallback("second", second),
	)

	got, err := s.String("key")
	if err != nil || got != "first" {
		t.Fatalf("expected first registered source to win, got %q err %v", got, err)
	}
	if v, err := s.Int("only/second"); err != nil || v != 2 {
		t.Fatalf("expected later source to answer unique keys, got %d err %v", v, err)
	}
}

func TestFallbackBeatsDeclaredDefault(t *testing.T) {
	defaults := NewDefaults()
	if err := defaults.Declare("editor/theme", KindString, WithDefault("declared")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overlay := seededBackend(NewRecord(Path{"editor", "theme"}, String("overlay")))
	s := newMemorySettings(t, WithDefaults(defaults), WithFallback("site", overlay))

	theme, err := s.String("editor/theme")
	if err != nil || theme != "overlay" {
		t.Fatalf("fallback outranks the declaration table, got %q err %v", theme, err)
	}
}

func TestFallbackKindMismatchSurfaces(t *testing.T) {
	overlay := seededBackend(NewRecord(Path{"window", "width"}, Int(800)))
	s := newMemorySettings(t, WithFallback("site", overlay))

	if _, err := s.String("window/width"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch from fallback hit, got %v", err)
	}
}

func TestFallbackErrorsFailConstruction(t *testing.T) {
	if _, err := New(WithFallback("broken", nil)); err == nil {
		t.Fatalf("expected nil fallback backend to fail")
	}

	corrupt := NewMemoryBackend()
	corrupt.Seed(Snapshot{Records: []Record{{Path: "x", Kind: KindInt, Text: "junk"}}})
	if _, err := New(WithFallback("corrupt", corrupt)); !errors.Is(err, ErrCorruptStore) {
		t.Fatalf("expected ErrCorruptStore from fallback load, got %v", err)
	}
}

func TestFallbackVisibleInEnumeration(t *testing.T) {
	overlay := seededBackend(NewRecord(Path{"help", "url"}, String("https://example.com/docs")))
	s := newMemorySettings(t, WithFallback("site", overlay))

	if !s.Has("help/url") {
		t.Fatalf("fallback keys count as present")
	}
	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "help/url" {
		t.Fatalf("expected fallback key enumerated, got %v", keys)
	}
	groups, _, err := s.Children("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 || groups[0] != "help" {
		t.Fatalf("expected fallback group enumerated, got %v", groups)
	}
}
