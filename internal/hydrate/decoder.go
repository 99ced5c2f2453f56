// Package hydrate turns nested settings views into strongly typed
// structs. The facade exposes it through Unmarshal and UnmarshalAs; the
// package itself knows nothing about stores or kinds, only payload
// maps.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the settings subtree a payload came from, so one
// hook can serve several mount points.
type Context struct {
	Path string
}

// PreHook runs before decoding and may return a replacement payload.
// Returning a nil map keeps the current payload.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook runs after decoding and may adjust or validate the result.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the JSON decode step entirely.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder hydrates settings payloads into values of type T. The zero
// decoder performs a plain JSON round trip; options bolt on hooks and
// json.Decoder tuning.
type Decoder[T any] struct {
	before  []PreHook
	after   []PostHook[T]
	tuners  []func(*json.Decoder)
	replace CustomDecoder[T]
}

// WithPreHook runs hook before decoding. Nil hooks are discarded.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.before = append(d.before, hook)
		}
	}
}

// WithPostHook runs hook after decoding completes. Nil hooks are
// discarded.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.after = append(d.after, hook)
		}
	}
}

// WithUseNumber decodes numbers as json.Number instead of float64.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.tuners = append(d.tuners, (*json.Decoder).UseNumber)
	}
}

// WithDisallowUnknownFields rejects payload fields the target struct
// does not declare.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.tuners = append(d.tuners, (*json.Decoder).DisallowUnknownFields)
	}
}

// WithDecoderConfig lets callers tune the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.tuners = append(d.tuners, configure)
		}
	}
}

// WithCustomDecoder swaps the JSON round trip for decoder. Pre and
// post hooks still run around it.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.replace = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	var d Decoder[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	return &d
}

// Decode runs payload through the hook pipeline and produces a T.
// Pre-hooks and custom decoders see a detached copy of payload, so
// they may mutate it freely without touching the caller's view; the
// plain decode path skips that copy since marshaling never mutates.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("hydrate: nil payload at %q", ctx.Path)
	}

	working := payload
	if len(d.before) > 0 || d.replace != nil {
		detached, err := deepCopy(payload)
		if err != nil {
			return zero, fmt.Errorf("hydrate: copy payload at %q: %w", ctx.Path, err)
		}
		working = detached
	}

	for _, hook := range d.before {
		replaced, err := hook(ctx, working)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook at %q: %w", ctx.Path, err)
		}
		if replaced != nil {
			working = replaced
		}
	}

	var out T
	if d.replace != nil {
		decoded, err := d.replace(ctx, working)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder at %q: %w", ctx.Path, err)
		}
		out = decoded
	} else if err := d.roundTrip(working, &out); err != nil {
		return zero, fmt.Errorf("hydrate: decode %q: %w", ctx.Path, err)
	}

	for _, hook := range d.after {
		if err := hook(ctx, &out); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook at %q: %w", ctx.Path, err)
		}
	}
	return out, nil
}

// roundTrip funnels the payload through encoding/json so struct tags,
// embedding, and custom UnmarshalJSON implementations all apply.
func (d *Decoder[T]) roundTrip(payload map[string]any, out *T) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	for _, tune := range d.tuners {
		if tune != nil {
			tune(dec)
		}
	}
	return dec.Decode(out)
}

// DecodeInto hydrates payload into target, which must be a non-nil
// pointer. It is the untyped counterpart of Decoder.Decode for call
// sites that cannot name T.
func DecodeInto(ctx Context, payload map[string]any, target any) error {
	if target == nil {
		return fmt.Errorf("hydrate: nil target at %q", ctx.Path)
	}
	if payload == nil {
		return fmt.Errorf("hydrate: nil payload at %q", ctx.Path)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hydrate: encode payload at %q: %w", ctx.Path, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("hydrate: decode %q: %w", ctx.Path, err)
	}
	return nil
}

// deepCopy detaches payload via a JSON round trip, which also strips
// any types a later marshal could not represent.
func deepCopy(payload map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
