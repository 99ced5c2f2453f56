package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultFilePath returns the conventional per-user settings location for
// an application: <user config dir>/<app>/settings.conf.
func DefaultFilePath(app string) (string, error) {
	if app == "" {
		return "", fmt.Errorf("%w: empty application name", ErrIO)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: locating user config dir: %v", ErrIO, err)
	}
	return filepath.Join(base, app, "settings.conf"), nil
}

// WithAppFile wires a file backend at the conventional per-user location
// for app, in the textual format.
func WithAppFile(app string) Option {
	return func(cfg *config) {
		path, err := DefaultFilePath(app)
		if err != nil {
			cfg.fail(err)
			return
		}
		backend, err := NewFileBackend(path)
		if err != nil {
			cfg.fail(err)
			return
		}
		cfg.backend = backend
	}
}

var (
	defaultMu       sync.RWMutex
	defaultSettings *Settings
)

// Default returns the process-wide facade, creating a memory-backed one on
// first use. Hosts that want persistence call SetDefault early.
func Default() *Settings {
	defaultMu.RLock()
	s := defaultSettings
	defaultMu.RUnlock()
	if s != nil {
		return s
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSettings == nil {
		// Memory-backed construction cannot fail.
		defaultSettings, _ = New()
	}
	return defaultSettings
}

// SetDefault replaces the process-wide facade.
func SetDefault(s *Settings) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultSettings = s
}
