package settings

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-settings/internal/hydrate"
	"github.com/goliatone/go-settings/layering"
)

// Pull reads every declared getter binding and stores the result, marking
// those paths dirty. With explicit paths only those declarations are
// pulled. Individual binding failures are collected, not short-circuited.
func (s *Settings) Pull(paths ...string) error {
	decls, err := s.selectBound(paths, "pull", (*Declaration).HasGetter)
	if err != nil {
		return err
	}
	var errs []error
	for _, decl := range decls {
		if err := s.pullOne(decl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Settings) pullOne(decl *Declaration) error {
	raw, err := decl.getter()
	if err != nil {
		return wrapKeyError("pull", decl.Path(), err)
	}
	v, err := Coerce(raw, decl.Kind())
	if err != nil {
		return wrapKeyError("pull", decl.Path(), err)
	}
	path, err := ParsePath(decl.Path())
	if err != nil {
		return wrapKeyError("pull", decl.Path(), err)
	}
	return s.write(path, decl, v)
}

// Push resolves the current value for every declared setter binding and
// hands its native form to the setter. Declarations that resolve nowhere
// are skipped; setter failures are collected.
func (s *Settings) Push(paths ...string) error {
	decls, err := s.selectBound(paths, "push", (*Declaration).HasSetter)
	if err != nil {
		return err
	}
	var errs []error
	for _, decl := range decls {
		if err := s.pushOne(decl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Settings) pushOne(decl *Declaration) error {
	path, err := ParsePath(decl.Path())
	if err != nil {
		return wrapKeyError("push", decl.Path(), err)
	}
	v, err := s.resolveAt(path, decl.Kind())
	if err != nil {
		if errors.Is(err, ErrUnknownKey) {
			return nil
		}
		return err
	}
	if err := decl.setter(v.Native()); err != nil {
		return wrapKeyError("push", decl.Path(), err)
	}
	return nil
}

// selectBound picks the declarations an op applies to. Without explicit
// paths every bound declaration qualifies; explicit paths must name a
// declaration carrying the binding.
func (s *Settings) selectBound(paths []string, op string, bound func(*Declaration) bool) ([]*Declaration, error) {
	if len(paths) == 0 {
		var decls []*Declaration
		for _, declPath := range s.defaults.Paths() {
			if decl, ok := s.defaults.Lookup(declPath); ok && bound(decl) {
				decls = append(decls, decl)
			}
		}
		return decls, nil
	}
	decls := make([]*Declaration, 0, len(paths))
	for _, rel := range paths {
		path, err := s.resolvePath(op, rel)
		if err != nil {
			return nil, err
		}
		joined := path.String()
		decl, ok := s.defaults.Lookup(joined)
		if !ok {
			return nil, wrapKeyError(op, joined, ErrUnknownKey)
		}
		if !bound(decl) {
			return nil, fmt.Errorf("settings: no %s binding declared for %q", op, joined)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// Unmarshal hydrates target from the group at key, honoring json tags.
// The subtree is the merged read view: local state over fallbacks over
// static declared defaults. Leaves have typed getters instead.
func (s *Settings) Unmarshal(key string, target any) error {
	payload, joined, err := s.subtreePayload("unmarshal", key)
	if err != nil {
		return err
	}
	return hydrate.DecodeInto(hydrate.Context{Path: joined}, payload, target)
}

// UnmarshalAs hydrates a fresh T from the group at key through the typed
// decode pipeline, with its hook and strictness options.
func UnmarshalAs[T any](s *Settings, key string, opts ...hydrate.DecoderOption[T]) (T, error) {
	payload, joined, err := s.subtreePayload("unmarshal", key)
	if err != nil {
		var zero T
		return zero, err
	}
	return hydrate.NewDecoder[T](opts...).Decode(hydrate.Context{Path: joined}, payload)
}

func (s *Settings) subtreePayload(op, key string) (map[string]any, string, error) {
	path, err := s.resolvePath(op, key)
	if err != nil {
		return nil, "", err
	}
	joined := path.String()
	entry, ok := s.mergedTreeAt(path)
	if !ok {
		return nil, joined, wrapKeyError(op, joined, ErrUnknownKey)
	}
	group, ok := entry.(map[string]any)
	if !ok {
		return nil, joined, wrapKeyError(op, joined, fmt.Errorf("%w: path names a leaf, use a typed getter", ErrTypeMismatch))
	}
	payload, ok := nativeTree(group).(map[string]any)
	if !ok {
		return nil, joined, wrapKeyError(op, joined, ErrTypeMismatch)
	}
	return payload, joined, nil
}

// mergedTreeAt returns the merged read view narrowed to path: the local
// tree strongest, then fallbacks in order, then static declared defaults.
func (s *Settings) mergedTreeAt(path Path) (any, bool) {
	trees := make([]map[string]any, 0, len(s.overlays)+2)
	trees = append(trees, s.store.tree())
	for _, overlay := range s.overlays {
		trees = append(trees, overlay.store.tree())
	}
	trees = append(trees, s.defaults.Tree())
	var cur any = layering.MergeAll(trees...)
	for _, seg := range path {
		group, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = group[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// nativeTree strips Value tags from a nested tree, leaving plain data.
func nativeTree(entry any) any {
	switch t := entry.(type) {
	case Value:
		return t.Native()
	case map[string]any:
		out := make(map[string]any, len(t))
		for name, child := range t {
			out[name] = nativeTree(child)
		}
		return out
	default:
		return t
	}
}
