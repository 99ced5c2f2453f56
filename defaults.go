package settings

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Declaration describes one declared setting: its kind, optional static
// default, optional computed-default and check rules, and optional UI
// bindings. Declarations are immutable once registered.
type Declaration struct {
	path        Path
	kind        Kind
	fallback    Value
	hasFallback bool
	rawDefault  any
	defaultRule string
	checkRule   string
	getter      func() (any, error)
	setter      func(any) error
	description string
}

// DeclareOption configures a declaration.
type DeclareOption func(*Declaration)

// WithDefault sets the static fallback returned when the key is missing
// and no computed-default rule applies. The value is coerced to the
// declared kind at declaration time.
func WithDefault(value any) DeclareOption {
	return func(d *Declaration) {
		d.rawDefault = value
		d.hasFallback = true
	}
}

// WithDefaultRule sets an expression evaluated to produce the default for
// a missing key. A static default, when also present, backstops rule
// failures.
func WithDefaultRule(expr string) DeclareOption {
	return func(d *Declaration) {
		d.defaultRule = expr
	}
}

// WithCheck sets an expression evaluated against every write to the
// declared path. The rule sees the candidate as value and must return
// true to admit the write.
func WithCheck(expr string) DeclareOption {
	return func(d *Declaration) {
		d.checkRule = expr
	}
}

// WithGetter binds a pull function, typically reading a live widget, used
// by Pull and flush-time binding sync.
func WithGetter(fn func() (any, error)) DeclareOption {
	return func(d *Declaration) {
		d.getter = fn
	}
}

// WithSetter binds a push function, typically updating a widget, used by
// Push and load-time binding sync.
func WithSetter(fn func(any) error) DeclareOption {
	return func(d *Declaration) {
		d.setter = fn
	}
}

// WithDescription attaches human-readable documentation, surfaced by the
// schema generator.
func WithDescription(text string) DeclareOption {
	return func(d *Declaration) {
		d.description = text
	}
}

// Path returns the declared key path, joined.
func (d *Declaration) Path() string {
	return d.path.String()
}

// Kind returns the declared kind.
func (d *Declaration) Kind() Kind {
	return d.kind
}

// Default returns the static fallback and whether one was declared.
func (d *Declaration) Default() (Value, bool) {
	return d.fallback, d.hasFallback
}

// DefaultRule returns the computed-default expression, empty when absent.
func (d *Declaration) DefaultRule() string {
	return d.defaultRule
}

// CheckRule returns the write-check expression, empty when absent.
func (d *Declaration) CheckRule() string {
	return d.checkRule
}

// Description returns the declared documentation text.
func (d *Declaration) Description() string {
	return d.description
}

// HasGetter reports whether a pull binding is attached.
func (d *Declaration) HasGetter() bool {
	return d.getter != nil
}

// HasSetter reports whether a push binding is attached.
func (d *Declaration) HasSetter() bool {
	return d.setter != nil
}

// resolvable reports whether the declaration can produce a value without
// the store, through a default rule or a static fallback.
func (d *Declaration) resolvable() bool {
	return d.hasFallback || d.defaultRule != ""
}

// Defaults is the declaration table consulted when a read misses the
// store. It never mutates the store; declared fallbacks are resolved per
// read and are not written back.
type Defaults struct {
	mu    sync.RWMutex
	decls map[string]*Declaration
}

// NewDefaults constructs an empty declaration table.
func NewDefaults() *Defaults {
	return &Defaults{decls: make(map[string]*Declaration)}
}

// Declare registers path under kind. Redeclaring a path fails with
// ErrAlreadyDeclared, and a declaration whose path nests under or above an
// existing one fails with ErrPathCollision.
func (d *Defaults) Declare(rawPath string, kind Kind, opts ...DeclareOption) error {
	path, err := ParsePath(rawPath)
	if err != nil {
		return err
	}
	joined := path.String()
	if _, known := kindNames[kind]; !known {
		return wrapKeyError("declare", joined, fmt.Errorf("%w: cannot declare kind %q", ErrTypeMismatch, kind))
	}

	decl := &Declaration{path: path, kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(decl)
		}
	}
	if decl.hasFallback {
		fallback, err := Coerce(decl.rawDefault, kind)
		if err != nil {
			return wrapKeyError("declare", joined, err)
		}
		decl.fallback = fallback
		decl.rawDefault = nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.decls == nil {
		d.decls = make(map[string]*Declaration)
	}
	if _, exists := d.decls[joined]; exists {
		return wrapKeyError("declare", joined, ErrAlreadyDeclared)
	}
	prefix := joined + Separator
	for existing := range d.decls {
		if strings.HasPrefix(existing, prefix) || strings.HasPrefix(joined, existing+Separator) {
			return wrapKeyError("declare", joined, fmt.Errorf("%w: conflicts with declaration %q", ErrPathCollision, existing))
		}
	}
	d.decls[joined] = decl
	return nil
}

// Lookup returns the declaration registered for a joined path.
func (d *Defaults) Lookup(joined string) (*Declaration, bool) {
	if d == nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	decl, ok := d.decls[joined]
	return decl, ok
}

// Paths returns every declared path, sorted.
func (d *Defaults) Paths() []string {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	paths := make([]string, 0, len(d.decls))
	for path := range d.decls {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of declarations.
func (d *Defaults) Len() int {
	if d == nil {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.decls)
}

// Clone returns a table sharing the immutable declarations.
func (d *Defaults) Clone() *Defaults {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	clone := &Defaults{decls: make(map[string]*Declaration, len(d.decls))}
	for path, decl := range d.decls {
		clone.decls[path] = decl
	}
	return clone
}

// Tree returns the static fallbacks as a nested tree with Value leaves,
// the defaults layer of a resolution chain. Computed-default rules are not
// represented; resolution evaluates those per read.
func (d *Defaults) Tree() map[string]any {
	out := map[string]any{}
	if d == nil {
		return out
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, decl := range d.decls {
		if !decl.hasFallback {
			continue
		}
		cur := out
		for _, seg := range decl.path[:len(decl.path)-1] {
			next, ok := cur[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[seg] = next
			}
			cur = next
		}
		cur[decl.path.Leaf()] = decl.fallback
	}
	return out
}
