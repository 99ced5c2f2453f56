package settings

import (
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	st := NewStore()
	for raw, v := range map[string]Value{
		"editor/autosave": Bool(true),
		"editor/zoom":     Float(1.25),
		"plugins":         List(String("lint")),
		"shortcuts":       Map(map[string]Value{"save": String("ctrl+s")}),
		"theme":           String("dark"),
		"window/width":    Int(800),
	} {
		if err := st.Set(mustPath(t, raw), v); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}

	snap := st.Snapshot()
	if snap.ID == "" {
		t.Fatalf("expected a fresh snapshot id")
	}
	if snap.Len() != 6 {
		t.Fatalf("expected 6 records, got %d", snap.Len())
	}
	if again := st.Snapshot(); again.ID == snap.ID {
		t.Fatalf("each snapshot must carry its own id")
	}

	loaded, err := LoadSnapshot(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Dirty() {
		t.Fatalf("a loaded store starts clean")
	}
	for _, raw := range []string{"editor/autosave", "plugins", "theme", "window/width"} {
		want, _ := st.Get(mustPath(t, raw))
		got, err := loaded.Get(mustPath(t, raw))
		if err != nil {
			t.Fatalf("get %q: %v", raw, err)
		}
		if !want.Equal(got) {
			t.Fatalf("value %q changed across snapshot round trip", raw)
		}
	}
}

func TestSnapshotRecordsAreSorted(t *testing.T) {
	st := NewStore()
	for _, raw := range []string{"z", "a/b", "a/a", "m/x/y"} {
		if err := st.Set(mustPath(t, raw), Int(1)); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}
	snap := st.Snapshot()
	want := []string{"a/a", "a/b", "m/x/y", "z"}
	for i, rec := range snap.Records {
		if rec.Path != want[i] {
			t.Fatalf("record %d: expected %q, got %q", i, want[i], rec.Path)
		}
	}
}

func TestLoadSnapshotRejectsBadRecords(t *testing.T) {
	cases := []struct {
		name    string
		records []Record
	}{
		{"duplicate", []Record{
			{Path: "theme", Kind: KindString, Text: "dark"},
			{Path: "theme", Kind: KindString, Text: "light"},
		}},
		{"malformedPath", []Record{
			{Path: "bad//path", Kind: KindInt, Text: "1"},
		}},
		{"emptyPath", []Record{
			{Path: "", Kind: KindInt, Text: "1"},
		}},
		{"conflict", []Record{
			{Path: "editor", Kind: KindInt, Text: "1"},
			{Path: "editor/theme", Kind: KindString, Text: "dark"},
		}},
		{"badText", []Record{
			{Path: "count", Kind: KindInt, Text: "not-a-number"},
		}},
	}
	for _, tc := range cases {
		if _, err := LoadSnapshot(Snapshot{Records: tc.records}); !errors.Is(err, ErrCorruptStore) {
			t.Fatalf("%s: expected ErrCorruptStore, got %v", tc.name, err)
		}
	}
}

func TestSnapshotCloneDetaches(t *testing.T) {
	snap := Snapshot{ID: "gen", Records: []Record{{Path: "a", Kind: KindInt, Text: "1"}}}
	clone := snap.Clone()
	clone.Records[0].Text = "2"
	if snap.Records[0].Text != "1" {
		t.Fatalf("mutating the clone must not touch the original")
	}
	if clone.ID != "gen" {
		t.Fatalf("expected id preserved, got %q", clone.ID)
	}

	empty := Snapshot{}.Clone()
	if empty.Records != nil {
		t.Fatalf("cloning a nil record slice stays nil")
	}
}

func TestStoreNativeView(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/tab_width"), Int(4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Set(mustPath(t, "editor/autosave"), Bool(true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	native := st.Native()
	editor, ok := native["editor"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map, got %T", native["editor"])
	}
	if width, ok := editor["tab_width"].(int64); !ok || width != 4 {
		t.Fatalf("expected native int64 4, got %#v", editor["tab_width"])
	}
	if autosave, ok := editor["autosave"].(bool); !ok || !autosave {
		t.Fatalf("expected native bool, got %#v", editor["autosave"])
	}
}

func TestStoreFromTreeInvertsTree(t *testing.T) {
	st := NewStore()
	for raw, v := range map[string]Value{
		"editor/theme": String("dark"),
		"window/width": Int(800),
	} {
		if err := st.Set(mustPath(t, raw), v); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}

	rebuilt, err := storeFromTree(st.tree())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rebuilt.Dirty() {
		t.Fatalf("a rebuilt store starts clean")
	}
	for _, raw := range []string{"editor/theme", "window/width"} {
		want, _ := st.Get(mustPath(t, raw))
		got, err := rebuilt.Get(mustPath(t, raw))
		if err != nil {
			t.Fatalf("get %q: %v", raw, err)
		}
		if !want.Equal(got) {
			t.Fatalf("value %q changed across tree rebuild", raw)
		}
	}

	if _, err := storeFromTree(map[string]any{"bad": 42}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for untagged leaf, got %v", err)
	}
}

func TestInsertTreeBuildsGroups(t *testing.T) {
	tree := map[string]any{}
	insertTree(tree, mustPath(t, "a/b/c"), Int(1))
	insertTree(tree, mustPath(t, "a/b/d"), Int(2))
	insertTree(tree, mustPath(t, "top"), Bool(true))

	level, ok := tree["a"].(map[string]any)
	if !ok {
		t.Fatalf("expected group a, got %T", tree["a"])
	}
	inner, ok := level["b"].(map[string]any)
	if !ok {
		t.Fatalf("expected group a/b, got %T", level["b"])
	}
	if v, ok := inner["c"].(Value); !ok || !v.Equal(Int(1)) {
		t.Fatalf("expected tagged leaf at a/b/c, got %#v", inner["c"])
	}
	if v, ok := tree["top"].(Value); !ok || !v.Equal(Bool(true)) {
		t.Fatalf("expected tagged leaf at top, got %#v", tree["top"])
	}
}
