package settings

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Function represents a callable registered against rule engines.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the custom functions rule expressions may
// call. Names are canonicalized to lower case at registration, so
// lookup is case-insensitive.
type FunctionRegistry struct {
	mu     sync.RWMutex
	byName map[string]Function
}

// NewFunctionRegistry returns a registry with no functions.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byName: map[string]Function{}}
}

// Register adds fn under name. A nil function, an empty name, or a
// name already taken in any case form is an error.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	switch {
	case fn == nil:
		return fmt.Errorf("settings: function %q is nil", name)
	case name == "":
		return fmt.Errorf("settings: function name must not be empty")
	}
	lower := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName == nil {
		r.byName = map[string]Function{}
	}
	if _, taken := r.byName[lower]; taken {
		return fmt.Errorf("settings: function %q already registered", name)
	}
	r.byName[lower] = fn
	return nil
}

// Clone returns a registry holding the same functions. Registrations
// on either side after the clone stay local to it.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{byName: maps.Clone(r.byName)}
}

// Call invokes the function registered under name, case-insensitively.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("settings: function registry is nil")
	}
	fn := r.lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("settings: function %q not registered", name)
	}
	return fn(args...)
}

func (r *FunctionRegistry) lookup(name string) Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[strings.ToLower(name)]
}

// Names lists the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// WithFunctionRegistry configures the facade to expose registry
// functions to rule expressions. The registry is cloned, so later
// registrations on the caller's copy do not reach the facade.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.ruleFuncs = registry.Clone()
		}
	}
}

// WithCustomFunction registers fn under name for rule expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.ruleFuncs == nil {
			cfg.ruleFuncs = NewFunctionRegistry()
		}
		_ = cfg.ruleFuncs.Register(name, fn)
	}
}
