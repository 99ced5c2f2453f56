package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPath indicates a key path that is empty, begins or ends
	// with the separator, or contains an empty segment.
	ErrMalformedPath = errors.New("settings: malformed path")
	// ErrPathCollision indicates a group/leaf conflict: a path cannot name
	// both a stored value and a group of values.
	ErrPathCollision = errors.New("settings: path collision")
	// ErrUnknownKey indicates no leaf exists at the path and no default was
	// registered or supplied.
	ErrUnknownKey = errors.New("settings: unknown key")
	// ErrTypeMismatch indicates the stored kind disagrees with the kind
	// requested by the caller. Values are never silently coerced.
	ErrTypeMismatch = errors.New("settings: type mismatch")
	// ErrCorruptStore indicates the persisted snapshot could not be parsed.
	// The in-memory tree is never partially populated from a corrupt source.
	ErrCorruptStore = errors.New("settings: corrupt store")
	// ErrIO indicates the backing medium failed during load or write.
	ErrIO = errors.New("settings: io failure")
	// ErrNoGroup indicates EndGroup was called without a matching BeginGroup.
	ErrNoGroup = errors.New("settings: no open group")
	// ErrCheckFailed indicates a declared check rule rejected a written value.
	ErrCheckFailed = errors.New("settings: check rule rejected value")
	// ErrAlreadyDeclared indicates a second declaration for the same path.
	ErrAlreadyDeclared = errors.New("settings: path already declared")
	// ErrNotWatchable indicates the configured backend has no watchable
	// backing file.
	ErrNotWatchable = errors.New("settings: backend is not watchable")
)

// KeyError carries the operation and path alongside the originating error so
// callers can match sentinels with errors.Is while keeping full context.
type KeyError struct {
	Op        string
	Path      string
	Stored    Kind
	Requested Kind
	Err       error
}

func (e *KeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Stored != KindInvalid || e.Requested != KindInvalid {
		return fmt.Sprintf("%v: %s %q (stored %s, requested %s)", e.Err, e.Op, e.Path, e.Stored, e.Requested)
	}
	return fmt.Sprintf("%v: %s %q", e.Err, e.Op, e.Path)
}

func (e *KeyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapKeyError(op string, path string, err error) error {
	if err == nil {
		return nil
	}
	var keyErr *KeyError
	if errors.As(err, &keyErr) {
		return err
	}
	return &KeyError{Op: op, Path: path, Err: err}
}

func kindMismatch(op string, path string, stored, requested Kind) error {
	return &KeyError{
		Op:        op,
		Path:      path,
		Stored:    stored,
		Requested: requested,
		Err:       ErrTypeMismatch,
	}
}
