package activity

import (
	"context"
	"errors"
)

// ActivityHook is the sink side of the fan-out. Implementations
// receive events already normalized.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// Hooks is an ordered fan-out list. The zero value is usable and
// reports disabled.
type Hooks []ActivityHook

// Enabled reports whether at least one hook is registered.
func (h Hooks) Enabled() bool {
	return len(h) != 0
}

// Notify normalizes the event and delivers it to every registered hook.
// Events that fail the readiness check are dropped silently. A failing
// hook does not stop delivery to the hooks after it; all failures come
// back joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if !h.Enabled() {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.ready() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var failures []error
	for _, hook := range h {
		if hook != nil {
			failures = append(failures, hook.Notify(ctx, event))
		}
	}
	return errors.Join(failures...)
}

// HookFunc adapts a plain function to the ActivityHook interface.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn unless it is nil.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn != nil {
		return fn(ctx, event)
	}
	return nil
}
