package layering

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Level ranks a settings source. When two layers carry the same path, the
// higher level wins.
type Level int

const (
	// LevelUnknown marks a layer with missing metadata. NewChain drops it.
	LevelUnknown Level = iota
	// LevelDefaults holds declared fallback values, the weakest layer.
	LevelDefaults
	// LevelFallback holds a read-only store behind the writable one: a
	// system-wide file, an organization profile, a bundled preset.
	LevelFallback
	// LevelPrimary holds the writable store, the strongest layer.
	LevelPrimary
)

func (l Level) String() string {
	switch l {
	case LevelDefaults:
		return "defaults"
	case LevelFallback:
		return "fallback"
	case LevelPrimary:
		return "primary"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name back to its Level, ignoring case. Names that
// match nothing yield LevelUnknown.
func ParseLevel(value string) Level {
	switch strings.ToLower(value) {
	case "defaults":
		return LevelDefaults
	case "fallback":
		return LevelFallback
	case "primary":
		return LevelPrimary
	default:
		return LevelUnknown
	}
}

// Layer names one source tree within a resolution chain.
type Layer struct {
	Name  string         // source label (e.g., "file:settings.conf")
	Level Level          // precedence category
	Tree  map[string]any // nested settings view of the source
}

// Identifier returns a stable slug for deduplication and provenance labels.
func (l Layer) Identifier() string {
	return fmt.Sprintf("%s/%s", l.Level, l.Name)
}

// Chain is a resolution sequence ordered strongest first. Layers with equal
// levels keep the order they were given in.
type Chain struct {
	ordered []Layer
}

// NewChain sorts the given layers by descending level. Layers without a
// known level are dropped, and a repeated Identifier keeps only its first
// occurrence.
func NewChain(layers ...Layer) Chain {
	seen := make(map[string]struct{}, len(layers))
	kept := make([]Layer, 0, len(layers))
	for _, layer := range layers {
		if layer.Level == LevelUnknown {
			continue
		}
		id := layer.Identifier()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, layer)
	}
	slices.SortStableFunc(kept, func(a, b Layer) int {
		return cmp.Compare(b.Level, a.Level)
	})
	return Chain{ordered: kept}
}

// Ordered returns the chain's layers, strongest first.
func (c Chain) Ordered() []Layer {
	return slices.Clone(c.ordered)
}

// Strongest returns the winning layer, or a zero Layer for an empty chain.
func (c Chain) Strongest() Layer {
	if len(c.ordered) == 0 {
		return Layer{}
	}
	return c.ordered[0]
}

// Weakest returns the last-consulted layer, or a zero Layer for an empty
// chain.
func (c Chain) Weakest() Layer {
	if len(c.ordered) == 0 {
		return Layer{}
	}
	return c.ordered[len(c.ordered)-1]
}

// Resolve flattens the chain into a single tree, the strongest layer winning
// at every path.
func (c Chain) Resolve() map[string]any {
	trees := make([]map[string]any, 0, len(c.ordered))
	for _, layer := range c.ordered {
		trees = append(trees, layer.Tree)
	}
	return MergeAll(trees...)
}
