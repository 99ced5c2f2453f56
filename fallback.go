package settings

import (
	"context"
	"fmt"

	"github.com/goliatone/go-settings/layering"
)

// fallbackSource is a read-only backend registered with WithFallback,
// still unloaded. Order of registration is lookup order.
type fallbackSource struct {
	name    string
	backend Backend
}

// overlaySource is a loaded fallback: its tree answers reads that miss
// the writable store but is never written back.
type overlaySource struct {
	name       string
	snapshotID string
	store      *Store
}

// WithFallback registers a read-only source consulted after the primary
// tree. Typical uses are a system-wide file under an app-local one, or a
// shipped defaults file. Sources are searched in registration order.
func WithFallback(name string, backend Backend) Option {
	return func(c *config) {
		if backend == nil {
			c.fail(fmt.Errorf("settings: fallback %q: nil backend", name))
			return
		}
		c.fallbacks = append(c.fallbacks, fallbackSource{name: name, backend: backend})
	}
}

func loadOverlay(ctx context.Context, fb fallbackSource) (overlaySource, error) {
	snap, err := fb.backend.Load(ctx)
	if err != nil {
		return overlaySource{}, fmt.Errorf("settings: fallback %q: %w", fb.name, err)
	}
	st, err := LoadSnapshot(snap)
	if err != nil {
		return overlaySource{}, fmt.Errorf("settings: fallback %q: %w", fb.name, err)
	}
	return overlaySource{name: fb.name, snapshotID: snap.ID, store: st}, nil
}

// layeringChain builds the two-level merge used by Sync: local unflushed
// changes over the freshly loaded disk tree.
func layeringChain(local, disk map[string]any) layering.Chain {
	return layering.NewChain(
		layering.Layer{Name: "local", Level: layering.LevelPrimary, Tree: local},
		layering.Layer{Name: "disk", Level: layering.LevelFallback, Tree: disk},
	)
}
