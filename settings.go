package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Settings is the public facade over one settings tree: group scoping,
// typed reads with declared defaults behind them, checked writes, and the
// flush/sync lifecycle against a backend.
//
// A Settings is not internally synchronized. One goroutine owns it; the
// watcher only signals on a channel and never touches the tree.
type Settings struct {
	store    *Store
	backend  Backend
	defaults *Defaults
	overlays []overlaySource

	evaluator    Evaluator
	programCache ProgramCache
	ruleFuncs    *FunctionRegistry
	ruleLogger   RuleLogger
	schemaGen    SchemaGenerator

	logger  *slog.Logger
	emitter *activity.Emitter

	groupStack []Path

	lastWrite atomic.Value
	watch     *Watcher

	watchDebounce  time.Duration
	flushOnClose   bool
	resetOnCorrupt bool
	bindingSync    bool
	closed         bool
}

// New constructs a Settings facade, loading the full tree from the backend
// before returning. With no backend configured state lives in memory only.
// Corrupt persisted data fails construction unless WithResetOnCorrupt was
// given, in which case the tree starts empty.
func New(opts ...Option) (*Settings, error) {
	cfg := applyOptions(opts)
	if cfg.err != nil {
		return nil, cfg.err
	}
	backend := cfg.backend
	if backend == nil {
		backend = NewMemoryBackend()
	}
	defaults := cfg.defaults
	if defaults == nil {
		defaults = NewDefaults()
	}
	s := &Settings{
		backend:        backend,
		defaults:       defaults.Clone(),
		evaluator:      cfg.evaluator,
		programCache:   cfg.programCache,
		ruleFuncs:      cfg.ruleFuncs,
		ruleLogger:     cfg.ruleLoggerOrNoop(),
		schemaGen:      cfg.schemaGenerator(),
		logger:         cfg.activeLogger(),
		emitter:        newEmitter(cfg),
		watchDebounce:  cfg.watchDebounce,
		flushOnClose:   cfg.flushOnClose,
		resetOnCorrupt: cfg.resetOnCorrupt,
		bindingSync:    cfg.bindingSync,
	}

	ctx := context.Background()
	if err := s.loadPrimary(ctx); err != nil {
		return nil, err
	}
	for _, fb := range cfg.fallbacks {
		overlay, err := loadOverlay(ctx, fb)
		if err != nil {
			return nil, err
		}
		s.overlays = append(s.overlays, overlay)
	}

	if s.bindingSync {
		if err := s.Push(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadPrimary replaces the tree with the backend's current contents.
func (s *Settings) loadPrimary(ctx context.Context) error {
	snap, err := s.backend.Load(ctx)
	if err == nil {
		var st *Store
		st, err = LoadSnapshot(snap)
		if err == nil {
			s.store = st
			s.lastWrite.Store(snap.ID)
			return nil
		}
	}
	if errors.Is(err, ErrCorruptStore) && s.resetOnCorrupt {
		s.logger.Warn("settings: store corrupt, starting empty", "error", err)
		s.store = NewStore()
		s.lastWrite.Store("")
		s.recordRecovered(err)
		return nil
	}
	return err
}

// BeginGroup pushes a group prefix onto the scope stack. The name may span
// several segments; the matching EndGroup pops all of them.
func (s *Settings) BeginGroup(name string) error {
	parsed, err := ParsePath(name)
	if err != nil {
		return wrapKeyError("group", name, err)
	}
	s.groupStack = append(s.groupStack, parsed)
	return nil
}

// EndGroup pops the innermost group prefix. Unbalanced calls fail with
// ErrNoGroup.
func (s *Settings) EndGroup() error {
	if len(s.groupStack) == 0 {
		return ErrNoGroup
	}
	s.groupStack = s.groupStack[:len(s.groupStack)-1]
	return nil
}

// Group returns the joined current group prefix, empty at the root.
func (s *Settings) Group() string {
	return s.prefix().String()
}

func (s *Settings) prefix() Path {
	var p Path
	for _, frame := range s.groupStack {
		p = append(p, frame...)
	}
	return p
}

func (s *Settings) resolvePath(op, rel string) (Path, error) {
	path, err := JoinPath(s.prefix(), rel)
	if err != nil {
		return nil, wrapKeyError(op, rel, err)
	}
	return path, nil
}

// resolve walks the read cascade: the writable tree, then each fallback
// source in order, then the declaration table. KindInvalid requests any
// kind; otherwise the stored kind must match exactly.
func (s *Settings) resolve(rel string, kind Kind) (Value, error) {
	path, err := s.resolvePath("get", rel)
	if err != nil {
		return Value{}, err
	}
	return s.resolveAt(path, kind)
}

func (s *Settings) resolveAt(path Path, kind Kind) (Value, error) {
	joined := path.String()
	if v, ok := s.store.Lookup(path); ok {
		return checkKind(joined, v, kind)
	}
	for _, overlay := range s.overlays {
		if v, ok := overlay.store.Lookup(path); ok {
			return checkKind(joined, v, kind)
		}
	}
	if decl, ok := s.defaults.Lookup(joined); ok {
		v, err := s.resolveDeclared(decl)
		if err != nil {
			return Value{}, err
		}
		return checkKind(joined, v, kind)
	}
	return Value{}, wrapKeyError("get", joined, ErrUnknownKey)
}

func checkKind(joined string, v Value, kind Kind) (Value, error) {
	if kind == KindInvalid || v.Kind() == kind {
		return v, nil
	}
	return Value{}, kindMismatch("get", joined, v.Kind(), kind)
}

// resolveDeclared produces the declared default: the computed rule when
// present, backstopped by the static fallback on rule failure.
func (s *Settings) resolveDeclared(decl *Declaration) (Value, error) {
	if expr := decl.DefaultRule(); expr != "" {
		result, err := s.evaluateRule(RuleContext{Path: decl.Path()}, expr)
		if err == nil {
			v, cerr := Coerce(result, decl.Kind())
			if cerr == nil {
				return v, nil
			}
			err = cerr
		}
		if fallback, ok := decl.Default(); ok {
			s.logger.Debug("settings: default rule failed, using static fallback",
				"path", decl.Path(), "error", err)
			return fallback, nil
		}
		return Value{}, wrapKeyError("get", decl.Path(), err)
	}
	if fallback, ok := decl.Default(); ok {
		return fallback, nil
	}
	return Value{}, wrapKeyError("get", decl.Path(), ErrUnknownKey)
}

// Get returns the tagged value for key, whatever its kind.
func (s *Settings) Get(key string) (Value, error) {
	return s.resolve(key, KindInvalid)
}

// Bool reads a boolean setting.
func (s *Settings) Bool(key string) (bool, error) {
	v, err := s.resolve(key, KindBool)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

// BoolOr reads a boolean setting, returning fallback on any failure.
func (s *Settings) BoolOr(key string, fallback bool) bool {
	v, err := s.resolve(key, KindBool)
	if err != nil {
		return fallback
	}
	b, err := v.AsBool()
	if err != nil {
		return fallback
	}
	return b
}

// Int reads an integer setting.
func (s *Settings) Int(key string) (int64, error) {
	v, err := s.resolve(key, KindInt)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

// IntOr reads an integer setting, returning fallback on any failure.
func (s *Settings) IntOr(key string, fallback int64) int64 {
	v, err := s.resolve(key, KindInt)
	if err != nil {
		return fallback
	}
	i, err := v.AsInt()
	if err != nil {
		return fallback
	}
	return i
}

// Float reads a float setting.
func (s *Settings) Float(key string) (float64, error) {
	v, err := s.resolve(key, KindFloat)
	if err != nil {
		return 0, err
	}
	return v.AsFloat()
}

// FloatOr reads a float setting, returning fallback on any failure.
func (s *Settings) FloatOr(key string, fallback float64) float64 {
	v, err := s.resolve(key, KindFloat)
	if err != nil {
		return fallback
	}
	f, err := v.AsFloat()
	if err != nil {
		return fallback
	}
	return f
}

// String reads a text setting.
func (s *Settings) String(key string) (string, error) {
	v, err := s.resolve(key, KindString)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// StringOr reads a text setting, returning fallback on any failure.
func (s *Settings) StringOr(key, fallback string) string {
	v, err := s.resolve(key, KindString)
	if err != nil {
		return fallback
	}
	str, err := v.AsString()
	if err != nil {
		return fallback
	}
	return str
}

// List reads a list setting.
func (s *Settings) List(key string) ([]Value, error) {
	v, err := s.resolve(key, KindList)
	if err != nil {
		return nil, err
	}
	return v.AsList()
}

// ListOr reads a list setting, returning fallback on any failure.
func (s *Settings) ListOr(key string, fallback []Value) []Value {
	v, err := s.resolve(key, KindList)
	if err != nil {
		return fallback
	}
	items, err := v.AsList()
	if err != nil {
		return fallback
	}
	return items
}

// Map reads a map setting.
func (s *Settings) Map(key string) (map[string]Value, error) {
	v, err := s.resolve(key, KindMap)
	if err != nil {
		return nil, err
	}
	return v.AsMap()
}

// MapOr reads a map setting, returning fallback on any failure.
func (s *Settings) MapOr(key string, fallback map[string]Value) map[string]Value {
	v, err := s.resolve(key, KindMap)
	if err != nil {
		return fallback
	}
	entries, err := v.AsMap()
	if err != nil {
		return fallback
	}
	return entries
}

// Set stores a native value under key, wrapping it in a tagged value. When
// the path is declared the value is coerced to the declared kind and the
// check rule, if any, must admit it.
func (s *Settings) Set(key string, value any) error {
	path, err := s.resolvePath("set", key)
	if err != nil {
		return err
	}
	joined := path.String()
	decl, declared := s.defaults.Lookup(joined)

	var v Value
	if declared {
		v, err = Coerce(value, decl.Kind())
	} else {
		v, err = FromNative(value)
	}
	if err != nil {
		return wrapKeyError("set", joined, err)
	}
	return s.write(path, decl, v)
}

// SetValue stores an already tagged value under key. Declared paths demand
// the declared kind; no coercion happens here.
func (s *Settings) SetValue(key string, v Value) error {
	path, err := s.resolvePath("set", key)
	if err != nil {
		return err
	}
	joined := path.String()
	decl, declared := s.defaults.Lookup(joined)
	if declared && v.Kind() != decl.Kind() {
		return kindMismatch("set", joined, decl.Kind(), v.Kind())
	}
	return s.write(path, decl, v)
}

func (s *Settings) write(path Path, decl *Declaration, v Value) error {
	if decl != nil {
		if err := s.runCheck(decl, path, v); err != nil {
			return err
		}
	}
	joined := path.String()
	old, existed := s.store.Lookup(path)
	if err := s.store.Set(path, v); err != nil {
		return err
	}
	s.recordKeyChanged(joined, old, existed, v)
	return nil
}

func (s *Settings) runCheck(decl *Declaration, path Path, v Value) error {
	expr := decl.CheckRule()
	if expr == "" {
		return nil
	}
	result, err := s.evaluateRule(RuleContext{Path: path.String(), Value: v.Native()}, expr)
	if err != nil {
		return err
	}
	admitted, isBool := result.(bool)
	if !isBool || !admitted {
		return wrapKeyError("set", path.String(), fmt.Errorf("%w: check rule %q rejected value", ErrCheckFailed, expr))
	}
	return nil
}

// Remove deletes the leaf at key. Removing an absent key is a no-op;
// removing a group requires RemoveTree.
func (s *Settings) Remove(key string) error {
	path, err := s.resolvePath("remove", key)
	if err != nil {
		return err
	}
	old, existed := s.store.Lookup(path)
	if err := s.store.Remove(path); err != nil {
		return err
	}
	if existed {
		s.recordKeyRemoved(path.String(), old, false)
	}
	return nil
}

// RemoveTree deletes the subtree rooted at key, leaf or group alike.
func (s *Settings) RemoveTree(key string) error {
	path, err := s.resolvePath("remove", key)
	if err != nil {
		return err
	}
	existed := s.store.Has(path) || s.store.IsGroup(path)
	if err := s.store.RemoveTree(path); err != nil {
		return err
	}
	if existed {
		s.recordKeyRemoved(path.String(), Value{}, true)
	}
	return nil
}

// Clear empties the whole tree regardless of the current group.
func (s *Settings) Clear() {
	s.store.Clear()
	s.recordCleared()
}

// Has reports whether key resolves through any source: the tree, a
// fallback, or a resolvable declaration.
func (s *Settings) Has(key string) bool {
	path, err := s.resolvePath("get", key)
	if err != nil {
		return false
	}
	if s.store.Has(path) {
		return true
	}
	for _, overlay := range s.overlays {
		if overlay.store.Has(path) {
			return true
		}
	}
	if decl, ok := s.defaults.Lookup(path.String()); ok {
		return decl.resolvable()
	}
	return false
}

// Children enumerates the immediate child groups and keys under the
// current group, optionally narrowed by a relative path. Results union all
// sources and are sorted.
func (s *Settings) Children(rel string) (groups, keys []string, err error) {
	prefix := s.prefix()
	if rel != "" {
		prefix, err = JoinPath(prefix, rel)
		if err != nil {
			return nil, nil, wrapKeyError("children", rel, err)
		}
	}

	groupSet := map[string]struct{}{}
	keySet := map[string]struct{}{}
	collect := func(st *Store) {
		g, l := st.Children(prefix)
		for _, name := range g {
			groupSet[name] = struct{}{}
		}
		for _, name := range l {
			keySet[name] = struct{}{}
		}
	}
	collect(s.store)
	for _, overlay := range s.overlays {
		collect(overlay.store)
	}

	joined := prefix.String()
	for _, declPath := range s.defaults.Paths() {
		decl, ok := s.defaults.Lookup(declPath)
		if !ok || !decl.resolvable() {
			continue
		}
		rest := declPath
		if joined != "" {
			rest, ok = strings.CutPrefix(declPath, joined+Separator)
			if !ok {
				continue
			}
		}
		seg, _, nested := strings.Cut(rest, Separator)
		if nested {
			groupSet[seg] = struct{}{}
		} else {
			keySet[seg] = struct{}{}
		}
	}

	return sortedSetKeys(groupSet), sortedSetKeys(keySet), nil
}

// Keys returns every leaf path visible under the current group, relative
// to it and sorted. Declared-only keys are included when resolvable.
func (s *Settings) Keys() []string {
	prefix := s.prefix().String()
	set := map[string]struct{}{}
	add := func(full string) {
		if prefix == "" {
			set[full] = struct{}{}
			return
		}
		if rest, ok := strings.CutPrefix(full, prefix+Separator); ok {
			set[rest] = struct{}{}
		}
	}
	for _, key := range s.store.Keys() {
		add(key)
	}
	for _, overlay := range s.overlays {
		for _, key := range overlay.store.Keys() {
			add(key)
		}
	}
	for _, declPath := range s.defaults.Paths() {
		if decl, ok := s.defaults.Lookup(declPath); ok && decl.resolvable() {
			add(declPath)
		}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Dirty reports whether unflushed changes exist.
func (s *Settings) Dirty() bool {
	return s.store.Dirty()
}

// Snapshot serializes the current tree under a fresh snapshot ID.
func (s *Settings) Snapshot() Snapshot {
	return s.store.Snapshot()
}

// Flush writes the complete tree state to the backend, then forgets dirty
// flags and removal marks. When binding sync is enabled, declared getters
// are pulled first so live widget state reaches disk.
func (s *Settings) Flush(ctx context.Context) error {
	if s.bindingSync {
		if err := s.Pull(); err != nil {
			return err
		}
	}
	snap := s.store.Snapshot()
	if err := s.backend.Write(ctx, snap); err != nil {
		return err
	}
	s.lastWrite.Store(snap.ID)
	s.store.MarkClean()
	s.recordFlushed(snap)
	return nil
}

// Sync reloads the backend and merges it under local unflushed changes:
// dirty leaves win, removals stay removed, everything else follows disk.
// Nothing is written; dirty state survives until the next Flush.
func (s *Settings) Sync(ctx context.Context) error {
	snap, err := s.backend.Load(ctx)
	disk := NewStore()
	if err == nil {
		disk, err = LoadSnapshot(snap)
	}
	if err != nil {
		if !errors.Is(err, ErrCorruptStore) || !s.resetOnCorrupt {
			return err
		}
		s.logger.Warn("settings: store corrupt during sync, keeping local state", "error", err)
		disk = NewStore()
		snap = Snapshot{}
		s.recordRecovered(err)
	}

	base := map[string]any{}
	disk.Walk(func(path Path, v Value) {
		joined := path.String()
		if s.store.removedSince(joined) {
			return
		}
		insertTree(base, path, v)
	})

	overlay := map[string]any{}
	for _, joined := range s.store.DirtyLeaves() {
		path, perr := ParsePath(joined)
		if perr != nil {
			continue
		}
		if v, ok := s.store.Lookup(path); ok {
			insertTree(overlay, path, v)
		}
	}

	merged := layeringChain(overlay, base).Resolve()
	next, err := storeFromTree(merged)
	if err != nil {
		return err
	}
	next.dirty = copySet(s.store.dirty)
	next.removals = copySet(s.store.removals)
	s.store = next
	s.lastWrite.Store(snap.ID)

	if s.bindingSync {
		if err := s.Push(); err != nil {
			return err
		}
	}
	s.recordSynced(snap)
	return nil
}

// Close releases the watcher and, when WithFlushOnClose was given, writes
// pending state. Close is idempotent.
func (s *Settings) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.watch != nil {
		s.watch.Close()
		s.watch = nil
	}
	if s.flushOnClose && s.store.Dirty() {
		return s.Flush(context.Background())
	}
	return nil
}

func (s *Settings) lastWriteID() string {
	id, _ := s.lastWrite.Load().(string)
	return id
}

func copySet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}
