package settings

import (
	"fmt"
	"sort"
	"strings"
)

// node is one entry in the settings tree. A node with a nil children map is
// a leaf and carries a value; otherwise it is a group and the value field is
// ignored. A node is never both.
type node struct {
	value    Value
	children map[string]*node
}

func newGroup() *node {
	return &node{children: map[string]*node{}}
}

func (n *node) isLeaf() bool {
	return n.children == nil
}

// Store is the in-memory settings tree: groups own children exclusively,
// leaves carry tagged values. The store tracks which leaves changed and
// which subtrees were removed since the last successful flush, so a sync
// can overlay local edits onto freshly loaded state without resurrecting
// deleted keys.
//
// Store is not synchronized. Callers serialize mutation; the facade owns
// that contract.
type Store struct {
	root     *node
	dirty    map[string]struct{}
	removals map[string]struct{}
}

// NewStore returns an empty settings tree.
func NewStore() *Store {
	return &Store{
		root:     newGroup(),
		dirty:    map[string]struct{}{},
		removals: map[string]struct{}{},
	}
}

// Len returns the number of leaves in the tree.
func (s *Store) Len() int {
	count := 0
	s.Walk(func(Path, Value) {
		count++
	})
	return count
}

// Dirty reports whether the tree holds changes not yet flushed: modified
// leaves or recorded removals.
func (s *Store) Dirty() bool {
	return len(s.dirty) > 0 || len(s.removals) > 0
}

// Has reports whether a leaf exists at path.
func (s *Store) Has(path Path) bool {
	n := s.find(path)
	return n != nil && n.isLeaf()
}

// IsGroup reports whether path names a group. The empty path is the root
// group and always exists.
func (s *Store) IsGroup(path Path) bool {
	n := s.find(path)
	return n != nil && !n.isLeaf()
}

// Get returns the leaf value at path. Missing paths and paths naming a
// group fail with ErrUnknownKey.
func (s *Store) Get(path Path) (Value, error) {
	n := s.find(path)
	if n == nil {
		return Value{}, wrapKeyError("get", path.String(), ErrUnknownKey)
	}
	if !n.isLeaf() {
		return Value{}, wrapKeyError("get", path.String(), fmt.Errorf("%w: path names a group", ErrUnknownKey))
	}
	return n.value, nil
}

// Lookup is Get without error detail, for cascaded resolution.
func (s *Store) Lookup(path Path) (Value, bool) {
	n := s.find(path)
	if n == nil || !n.isLeaf() {
		return Value{}, false
	}
	return n.value, true
}

// Set stores a leaf value at path, creating intermediate groups on demand
// and marking the leaf dirty. Writing through an existing leaf, or onto a
// path that names a group, fails with ErrPathCollision. Replacing a leaf of
// a different kind is allowed; the last write wins.
func (s *Store) Set(path Path, v Value) error {
	if len(path) == 0 {
		return wrapKeyError("set", "", fmt.Errorf("%w: empty path", ErrMalformedPath))
	}
	if v.Kind() == KindInvalid {
		return wrapKeyError("set", path.String(), fmt.Errorf("%w: refusing to store an invalid value", ErrTypeMismatch))
	}
	cur := s.root
	for _, seg := range path[:len(path)-1] {
		child, ok := cur.children[seg]
		if !ok {
			child = newGroup()
			cur.children[seg] = child
		}
		if child.isLeaf() {
			return wrapKeyError("set", path.String(), fmt.Errorf("%w: segment %q holds a value", ErrPathCollision, seg))
		}
		cur = child
	}
	leaf := path.Leaf()
	if existing, ok := cur.children[leaf]; ok && !existing.isLeaf() {
		return wrapKeyError("set", path.String(), fmt.Errorf("%w: path names a group", ErrPathCollision))
	}
	cur.children[leaf] = &node{value: v}
	joined := path.String()
	s.dirty[joined] = struct{}{}
	delete(s.removals, joined)
	return nil
}

// Remove deletes the leaf at path. Absent paths are a no-op; a path naming
// a group fails with ErrPathCollision and RemoveTree must be used instead.
// The removal is recorded so a later sync does not restore the key from
// disk, whether or not the leaf was present locally.
func (s *Store) Remove(path Path) error {
	if len(path) == 0 {
		return wrapKeyError("remove", "", fmt.Errorf("%w: empty path", ErrMalformedPath))
	}
	if _, err := removeLeaf(s.root, path, 0); err != nil {
		return wrapKeyError("remove", path.String(), err)
	}
	joined := path.String()
	delete(s.dirty, joined)
	s.removals[joined] = struct{}{}
	return nil
}

// removeLeaf deletes the leaf at path[idx:] under n, pruning groups left
// empty on the way out. Groups are never persisted without leaves, so an
// emptied group must not linger in memory either.
func removeLeaf(n *node, path Path, idx int) (bool, error) {
	seg := path[idx]
	child, ok := n.children[seg]
	if !ok {
		return false, nil
	}
	if idx == len(path)-1 {
		if !child.isLeaf() {
			return false, fmt.Errorf("%w: path names a group, use RemoveTree", ErrPathCollision)
		}
		delete(n.children, seg)
		return true, nil
	}
	if child.isLeaf() {
		return false, nil
	}
	removed, err := removeLeaf(child, path, idx+1)
	if removed && len(child.children) == 0 {
		delete(n.children, seg)
	}
	return removed, err
}

// RemoveTree deletes the node at path and, when it is a group, every
// descendant with it. Absent paths are a no-op. The whole subtree is
// recorded as removed for sync purposes.
func (s *Store) RemoveTree(path Path) error {
	if len(path) == 0 {
		return wrapKeyError("remove", "", fmt.Errorf("%w: empty path, use Clear", ErrMalformedPath))
	}
	removeSubtree(s.root, path, 0)
	joined := path.String()
	prefix := joined + Separator
	for k := range s.dirty {
		if k == joined || strings.HasPrefix(k, prefix) {
			delete(s.dirty, k)
		}
	}
	for k := range s.removals {
		if strings.HasPrefix(k, prefix) {
			delete(s.removals, k)
		}
	}
	s.removals[joined] = struct{}{}
	return nil
}

func removeSubtree(n *node, path Path, idx int) bool {
	seg := path[idx]
	child, ok := n.children[seg]
	if !ok {
		return false
	}
	if idx == len(path)-1 {
		delete(n.children, seg)
		return true
	}
	if child.isLeaf() {
		return false
	}
	removed := removeSubtree(child, path, idx+1)
	if removed && len(child.children) == 0 {
		delete(n.children, seg)
	}
	return removed
}

// Clear empties the tree and records a root removal, so a sync after Clear
// starts from local state only.
func (s *Store) Clear() {
	s.root = newGroup()
	s.dirty = map[string]struct{}{}
	s.removals = map[string]struct{}{"": {}}
}

// Children returns the immediate child names under path, groups and leaves
// separately, each sorted. The empty path enumerates the root. A missing
// path or a leaf yields empty results.
func (s *Store) Children(path Path) (groups, leaves []string) {
	n := s.find(path)
	if n == nil || n.isLeaf() {
		return nil, nil
	}
	for name, child := range n.children {
		if child.isLeaf() {
			leaves = append(leaves, name)
		} else {
			groups = append(groups, name)
		}
	}
	sort.Strings(groups)
	sort.Strings(leaves)
	return groups, leaves
}

// Keys returns every leaf path in the tree, joined and sorted.
func (s *Store) Keys() []string {
	var keys []string
	s.Walk(func(path Path, _ Value) {
		keys = append(keys, path.String())
	})
	return keys
}

// Walk visits every leaf in deterministic path order.
func (s *Store) Walk(fn func(path Path, v Value)) {
	walkNode(s.root, nil, fn)
}

func walkNode(n *node, prefix Path, fn func(Path, Value)) {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := n.children[name]
		childPath := append(prefix.Clone(), name)
		if child.isLeaf() {
			fn(childPath, child.value)
			continue
		}
		walkNode(child, childPath, fn)
	}
}

// DirtyLeaves returns the joined paths of leaves modified since the last
// flush, sorted.
func (s *Store) DirtyLeaves() []string {
	return sortedSetKeys(s.dirty)
}

// Removals returns the joined paths of subtrees removed since the last
// flush, sorted. An empty string entry records a Clear.
func (s *Store) Removals() []string {
	return sortedSetKeys(s.removals)
}

// MarkClean forgets dirty flags and recorded removals. Called after the
// full tree state reached the backend.
func (s *Store) MarkClean() {
	s.dirty = map[string]struct{}{}
	s.removals = map[string]struct{}{}
}

// removedSince reports whether the joined path falls under a removal
// recorded since the last flush.
func (s *Store) removedSince(joined string) bool {
	if _, ok := s.removals[""]; ok {
		return true
	}
	for mark := range s.removals {
		if mark == "" {
			continue
		}
		if joined == mark || strings.HasPrefix(joined, mark+Separator) {
			return true
		}
	}
	return false
}

func (s *Store) find(path Path) *node {
	cur := s.root
	for _, seg := range path {
		if cur.isLeaf() {
			return nil
		}
		child, ok := cur.children[seg]
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

func sortedSetKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
