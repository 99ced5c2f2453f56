package activity

import (
	"context"
	"strings"
)

// defaultChannel is stamped onto events whose producer did not name one.
const defaultChannel = "settings"

// Config carries the emission settings the facade resolves from its
// functional options.
type Config struct {
	Enabled bool
	Channel string
}

// channelOrDefault returns the configured channel, or defaultChannel
// when the config leaves it blank.
func (c Config) channelOrDefault() string {
	if channel := strings.TrimSpace(c.Channel); channel != "" {
		return channel
	}
	return defaultChannel
}

// Emitter stamps a channel onto events and hands them to a hook
// fan-out. A nil *Emitter is valid and permanently disabled.
type Emitter struct {
	targets Hooks
	channel string
	active  bool
}

// NewEmitter builds an emitter over hooks. Nil entries are discarded up
// front so Emit never re-checks them; with no usable hooks the emitter
// reports disabled regardless of cfg.Enabled.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	var targets Hooks
	for _, hook := range hooks {
		if hook != nil {
			targets = append(targets, hook)
		}
	}
	return &Emitter{
		targets: targets,
		channel: cfg.channelOrDefault(),
		active:  cfg.Enabled && targets.Enabled(),
	}
}

// Enabled reports whether Emit would deliver anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.active
}

// Emit delivers the event to every hook, stamping the emitter's channel
// when the event does not name its own.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.targets.Notify(ctx, event)
}
