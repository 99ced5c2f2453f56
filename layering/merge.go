// Package layering composes nested settings trees from multiple sources
// with explicit precedence. Trees are map[string]any where every nested
// map[string]any is a group and anything else is a leaf. Leaves are opaque
// immutable values and are shared between input and output, never copied.
package layering

// Clone returns a tree whose group maps are detached from the input.
func Clone(tree map[string]any) map[string]any {
	if tree == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(tree))
	for key, entry := range tree {
		out[key] = cloneEntry(entry)
	}
	return out
}

func cloneEntry(entry any) any {
	if group, ok := entry.(map[string]any); ok {
		return Clone(group)
	}
	return entry
}

// Merge composes two trees, keeping every entry of the stronger one and
// filling missing paths from the weaker. Groups merge recursively; when a
// path holds a group on one side and a leaf on the other, the stronger
// side's shape wins wholesale. Neither input is mutated.
func Merge(strong, weak map[string]any) map[string]any {
	if strong == nil {
		return Clone(weak)
	}
	if weak == nil {
		return Clone(strong)
	}
	out := make(map[string]any, len(weak)+len(strong))
	for key, entry := range weak {
		out[key] = cloneEntry(entry)
	}
	for key, entry := range strong {
		existing, present := out[key]
		if !present {
			out[key] = cloneEntry(entry)
			continue
		}
		strongGroup, strongIsGroup := entry.(map[string]any)
		weakGroup, weakIsGroup := existing.(map[string]any)
		if strongIsGroup && weakIsGroup {
			out[key] = Merge(strongGroup, weakGroup)
			continue
		}
		out[key] = cloneEntry(entry)
	}
	return out
}

// MergeAll composes trees ordered from strongest to weakest, the same
// precedence convention the resolution chain uses.
func MergeAll(layers ...map[string]any) map[string]any {
	if len(layers) == 0 {
		return map[string]any{}
	}
	merged := Clone(layers[len(layers)-1])
	for i := len(layers) - 2; i >= 0; i-- {
		merged = Merge(layers[i], merged)
	}
	return merged
}

// Lookup walks a tree to the leaf at path. It reports false for missing
// paths and for paths that stop at a group.
func Lookup(tree map[string]any, path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := tree
	for i, seg := range path {
		entry, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			if _, isGroup := entry.(map[string]any); isGroup {
				return nil, false
			}
			return entry, true
		}
		next, ok := entry.(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}
