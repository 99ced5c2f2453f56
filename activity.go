package settings

import (
	"context"

	"github.com/goliatone/go-settings/pkg/activity"
)

// WithActivityHooks attaches audit hooks notified on key changes,
// removals, flushes, syncs, clears, and corruption recovery. Hook
// failures never fail the triggering operation; they are logged at debug
// level.
func WithActivityHooks(hooks ...activity.ActivityHook) Option {
	return func(cfg *config) {
		for _, hook := range hooks {
			if hook != nil {
				cfg.hooks = append(cfg.hooks, hook)
			}
		}
	}
}

// WithActivityChannel overrides the default "settings" channel stamped on
// emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.emitterCfg.Channel = channel
	}
}

// WithoutActivity disables event emission even when hooks are attached.
func WithoutActivity() Option {
	return func(cfg *config) {
		cfg.emitterCfg.Enabled = false
	}
}

func newEmitter(cfg config) *activity.Emitter {
	return activity.NewEmitter(cfg.hooks, cfg.emitterCfg)
}

func (s *Settings) emitEvent(event activity.Event) {
	if err := s.emitter.Emit(context.Background(), event); err != nil {
		s.logger.Debug("settings: activity hook failed", "verb", event.Verb, "error", err)
	}
}

func (s *Settings) recordKeyChanged(path string, old Value, existed bool, v Value) {
	if !s.emitter.Enabled() {
		return
	}
	input := activity.EventInput{Path: path, NewValue: v.Native()}
	if existed {
		input.OldValue = old.Native()
	}
	s.emitEvent(activity.BuildKeyChangedEvent(input))
}

func (s *Settings) recordKeyRemoved(path string, old Value, subtree bool) {
	if !s.emitter.Enabled() {
		return
	}
	input := activity.EventInput{Path: path, Subtree: subtree}
	if !subtree {
		input.OldValue = old.Native()
	}
	s.emitEvent(activity.BuildKeyRemovedEvent(input))
}

func (s *Settings) recordFlushed(snap Snapshot) {
	if !s.emitter.Enabled() {
		return
	}
	s.emitEvent(activity.BuildFlushedEvent(activity.EventInput{
		SnapshotID: snap.ID,
		Metadata:   map[string]any{"records": snap.Len()},
	}))
}

func (s *Settings) recordSynced(snap Snapshot) {
	if !s.emitter.Enabled() {
		return
	}
	s.emitEvent(activity.BuildSyncedEvent(activity.EventInput{
		SnapshotID: snap.ID,
		Metadata:   map[string]any{"records": snap.Len()},
	}))
}

func (s *Settings) recordCleared() {
	if !s.emitter.Enabled() {
		return
	}
	s.emitEvent(activity.BuildClearedEvent(activity.EventInput{}))
}

func (s *Settings) recordRecovered(err error) {
	if !s.emitter.Enabled() {
		return
	}
	s.emitEvent(activity.BuildRecoveredEvent(activity.EventInput{Reason: err.Error()}))
}
