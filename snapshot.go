package settings

import (
	"fmt"

	"github.com/google/uuid"
)

// Snapshot serializes the full tree into records, in deterministic walk
// order, under a fresh snapshot ID.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{ID: uuid.NewString()}
	s.Walk(func(path Path, v Value) {
		snap.Records = append(snap.Records, NewRecord(path, v))
	})
	return snap
}

// LoadSnapshot builds a tree from persisted records. Any bad record fails
// the whole load: a malformed path, a duplicate, a group/leaf conflict, or
// undecodable text all yield ErrCorruptStore and no partial store.
func LoadSnapshot(snap Snapshot) (*Store, error) {
	st := NewStore()
	seen := make(map[string]struct{}, len(snap.Records))
	for _, rec := range snap.Records {
		if _, dup := seen[rec.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate record %q", ErrCorruptStore, rec.Path)
		}
		seen[rec.Path] = struct{}{}
		path, err := ParsePath(rec.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: record path %q", ErrCorruptStore, rec.Path)
		}
		v, err := rec.Value()
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", rec.Path, err)
		}
		if err := st.Set(path, v); err != nil {
			return nil, fmt.Errorf("%w: conflicting records at %q", ErrCorruptStore, rec.Path)
		}
	}
	st.MarkClean()
	return st, nil
}

// Native returns the tree as nested plain maps with native leaf values,
// the shape rule expressions and struct hydration consume.
func (s *Store) Native() map[string]any {
	return nativeNode(s.root)
}

func nativeNode(n *node) map[string]any {
	out := make(map[string]any, len(n.children))
	for name, child := range n.children {
		if child.isLeaf() {
			out[name] = child.value.Native()
			continue
		}
		out[name] = nativeNode(child)
	}
	return out
}

// tree returns the nested map view with tagged Value leaves. Unlike
// Native, leaves stay distinguishable from groups (a Map value is not a
// map[string]any here), which is what layered merging needs.
func (s *Store) tree() map[string]any {
	return treeNode(s.root)
}

func treeNode(n *node) map[string]any {
	out := make(map[string]any, len(n.children))
	for name, child := range n.children {
		if child.isLeaf() {
			out[name] = child.value
			continue
		}
		out[name] = treeNode(child)
	}
	return out
}

// storeFromTree rebuilds a clean store from a nested map with Value
// leaves, the inverse of tree after merging.
func storeFromTree(m map[string]any) (*Store, error) {
	st := NewStore()
	if err := setTree(st, nil, m); err != nil {
		return nil, err
	}
	st.MarkClean()
	return st, nil
}

func setTree(st *Store, prefix Path, m map[string]any) error {
	for name, entry := range m {
		childPath := append(prefix.Clone(), name)
		switch child := entry.(type) {
		case map[string]any:
			if err := setTree(st, childPath, child); err != nil {
				return err
			}
		case Value:
			if err := st.Set(childPath, child); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unexpected %T in merged tree at %q", ErrTypeMismatch, entry, childPath.String())
		}
	}
	return nil
}

// insertTree places a leaf into a nested map under path, creating groups
// on the way. Inputs come from a well formed store, so intermediate
// segments never hold leaves.
func insertTree(tree map[string]any, path Path, v Value) {
	cur := tree
	for _, seg := range path[:len(path)-1] {
		child, ok := cur[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			cur[seg] = child
		}
		cur = child
	}
	cur[path[len(path)-1]] = v
}
