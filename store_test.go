package settings

import (
	"errors"
	"slices"
	"testing"
)

func mustPath(t *testing.T, raw string) Path {
	t.Helper()
	path, err := ParsePath(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return path
}

func TestStoreSetAndGet(t *testing.T) {
	st := NewStore()
	path := mustPath(t, "editor/font/size")
	if err := st.Set(path, Int(12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, err := st.Get(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := v.AsInt(); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}

	if !st.Has(path) {
		t.Fatalf("expected Has to report the leaf")
	}
	if !st.IsGroup(mustPath(t, "editor/font")) {
		t.Fatalf("expected intermediate segment to be a group")
	}
	if !st.IsGroup(nil) {
		t.Fatalf("the empty path is the root group")
	}
	if st.Has(mustPath(t, "editor/font")) {
		t.Fatalf("a group is not a leaf")
	}
}

func TestStoreGetMissingAndGroup(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/theme"), String("dark")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := st.Get(mustPath(t, "editor/missing")); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for missing leaf, got %v", err)
	}
	if _, err := st.Get(mustPath(t, "editor")); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey for group path, got %v", err)
	}

	var keyErr *KeyError
	_, err := st.Get(mustPath(t, "editor/missing"))
	if !errors.As(err, &keyErr) {
		t.Fatalf("expected KeyError, got %T", err)
	}
	if keyErr.Op != "get" || keyErr.Path != "editor/missing" {
		t.Fatalf("expected op and path context, got %+v", keyErr)
	}
}

func TestStoreSetReplacesKind(t *testing.T) {
	st := NewStore()
	path := mustPath(t, "window/width")
	if err := st.Set(path, Int(800)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Set(path, String("wide")); err != nil {
		t.Fatalf("replacing a leaf with another kind must succeed, got %v", err)
	}
	v, _ := st.Get(path)
	if v.Kind() != KindString {
		t.Fatalf("expected last write to win, got %s", v.Kind())
	}
}

func TestStoreSetCollisions(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/theme"), String("dark")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := st.Set(mustPath(t, "editor/theme/variant"), String("high-contrast"))
	if !errors.Is(err, ErrPathCollision) {
		t.Fatalf("expected ErrPathCollision writing under a leaf, got %v", err)
	}
	err = st.Set(mustPath(t, "editor"), Bool(true))
	if !errors.Is(err, ErrPathCollision) {
		t.Fatalf("expected ErrPathCollision writing onto a group, got %v", err)
	}

	if err := st.Set(Path{}, Int(1)); !errors.Is(err, ErrMalformedPath) {
		t.Fatalf("expected ErrMalformedPath for empty path, got %v", err)
	}
	if err := st.Set(mustPath(t, "invalid"), Value{}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for zero value, got %v", err)
	}
}

func TestStoreRemoveLeaf(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/font/size"), Int(12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Remove(mustPath(t, "editor/font/size")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Has(mustPath(t, "editor/font/size")) {
		t.Fatalf("leaf should be gone")
	}
	if st.IsGroup(mustPath(t, "editor/font")) || st.IsGroup(mustPath(t, "editor")) {
		t.Fatalf("emptied groups should be pruned")
	}

	if err := st.Remove(mustPath(t, "never/existed")); err != nil {
		t.Fatalf("removing an absent leaf is a no-op, got %v", err)
	}
	if !slices.Contains(st.Removals(), "never/existed") {
		t.Fatalf("absent removal must still be recorded for sync")
	}
}

func TestStoreRemoveRejectsGroup(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/font/size"), Int(12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Remove(mustPath(t, "editor/font")); !errors.Is(err, ErrPathCollision) {
		t.Fatalf("expected ErrPathCollision removing a group, got %v", err)
	}
	if !st.Has(mustPath(t, "editor/font/size")) {
		t.Fatalf("failed remove must not alter the tree")
	}
}

func TestStoreRemoveTree(t *testing.T) {
	st := NewStore()
	for raw, v := range map[string]Value{
		"editor/font/size":   Int(12),
		"editor/font/family": String("mono"),
		"editor/theme":       String("dark"),
		"window/width":       Int(800),
	} {
		if err := st.Set(mustPath(t, raw), v); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}

	if err := st.RemoveTree(mustPath(t, "editor/font")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Has(mustPath(t, "editor/font/size")) || st.Has(mustPath(t, "editor/font/family")) {
		t.Fatalf("subtree should be gone")
	}
	if !st.Has(mustPath(t, "editor/theme")) {
		t.Fatalf("sibling leaf must survive")
	}

	// One subtree mark covers every descendant.
	removals := st.Removals()
	if !slices.Contains(removals, "editor/font") {
		t.Fatalf("expected subtree removal mark, got %v", removals)
	}
	if slices.Contains(removals, "editor/font/size") {
		t.Fatalf("descendant marks should collapse into the subtree mark, got %v", removals)
	}

	// RemoveTree also deletes a single leaf.
	if err := st.RemoveTree(mustPath(t, "window/width")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Has(mustPath(t, "window/width")) {
		t.Fatalf("leaf should be gone")
	}

	if err := st.RemoveTree(Path{}); !errors.Is(err, ErrMalformedPath) {
		t.Fatalf("expected ErrMalformedPath for empty path, got %v", err)
	}
}

func TestStoreClear(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/theme"), String("dark")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st.Clear()
	if st.Len() != 0 {
		t.Fatalf("expected empty tree, got %d leaves", st.Len())
	}
	if !st.removedSince("anything/at/all") {
		t.Fatalf("clear must shadow every disk path during sync")
	}
	if !st.Dirty() {
		t.Fatalf("clear leaves the store dirty until flushed")
	}
}

func TestStoreDirtyLifecycle(t *testing.T) {
	st := NewStore()
	if st.Dirty() {
		t.Fatalf("fresh store must be clean")
	}

	if err := st.Set(mustPath(t, "editor/theme"), String("dark")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Dirty() {
		t.Fatalf("set must mark dirty")
	}
	if got := st.DirtyLeaves(); !slices.Equal(got, []string{"editor/theme"}) {
		t.Fatalf("expected dirty leaf list, got %v", got)
	}

	st.MarkClean()
	if st.Dirty() {
		t.Fatalf("MarkClean must reset tracking")
	}

	if err := st.Remove(mustPath(t, "editor/theme")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Dirty() {
		t.Fatalf("remove must mark dirty")
	}
	if got := st.Removals(); !slices.Equal(got, []string{"editor/theme"}) {
		t.Fatalf("expected removal list, got %v", got)
	}

	// A rewrite cancels the tombstone for that exact path.
	if err := st.Set(mustPath(t, "editor/theme"), String("light")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Removals()) != 0 {
		t.Fatalf("set must clear the matching removal, got %v", st.Removals())
	}
}

func TestStoreRemovedSinceCoversSubtrees(t *testing.T) {
	st := NewStore()
	if err := st.Set(mustPath(t, "editor/font/size"), Int(12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.RemoveTree(mustPath(t, "editor/font")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !st.removedSince("editor/font") {
		t.Fatalf("the removed root itself is covered")
	}
	if !st.removedSince("editor/font/size") {
		t.Fatalf("descendants are covered")
	}
	if st.removedSince("editor/fontfamily") {
		t.Fatalf("sibling with shared name prefix is not covered")
	}
	if st.removedSince("editor") {
		t.Fatalf("ancestors are not covered")
	}
}

func TestStoreChildrenAndKeys(t *testing.T) {
	st := NewStore()
	for raw, v := range map[string]Value{
		"editor/font/size": Int(12),
		"editor/theme":     String("dark"),
		"editor/autosave":  Bool(true),
		"window/width":     Int(800),
		"zoom":             Float(1.5),
	} {
		if err := st.Set(mustPath(t, raw), v); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}

	groups, leaves := st.Children(nil)
	if !slices.Equal(groups, []string{"editor", "window"}) {
		t.Fatalf("expected sorted root groups, got %v", groups)
	}
	if !slices.Equal(leaves, []string{"zoom"}) {
		t.Fatalf("expected root leaves, got %v", leaves)
	}

	groups, leaves = st.Children(mustPath(t, "editor"))
	if !slices.Equal(groups, []string{"font"}) {
		t.Fatalf("expected editor groups, got %v", groups)
	}
	if !slices.Equal(leaves, []string{"autosave", "theme"}) {
		t.Fatalf("expected sorted editor leaves, got %v", leaves)
	}

	groups, leaves = st.Children(mustPath(t, "editor/theme"))
	if groups != nil || leaves != nil {
		t.Fatalf("a leaf has no children, got %v %v", groups, leaves)
	}
	groups, leaves = st.Children(mustPath(t, "absent"))
	if groups != nil || leaves != nil {
		t.Fatalf("a missing path has no children, got %v %v", groups, leaves)
	}

	keys := st.Keys()
	want := []string{"editor/autosave", "editor/font/size", "editor/theme", "window/width", "zoom"}
	if !slices.Equal(keys, want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	if st.Len() != 5 {
		t.Fatalf("expected 5 leaves, got %d", st.Len())
	}
}

func TestStoreWalkIsDeterministic(t *testing.T) {
	st := NewStore()
	for _, raw := range []string{"b/two", "a/one", "b/a/deep", "c"} {
		if err := st.Set(mustPath(t, raw), Int(1)); err != nil {
			t.Fatalf("set %q: %v", raw, err)
		}
	}
	var visited []string
	st.Walk(func(path Path, _ Value) {
		visited = append(visited, path.String())
	})
	want := []string{"a/one", "b/a/deep", "b/two", "c"}
	if !slices.Equal(visited, want) {
		t.Fatalf("expected walk order %v, got %v", want, visited)
	}
}
