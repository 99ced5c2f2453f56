package activity

import (
	"context"
	"sync"
)

// CaptureHook retains every event it is notified with, in arrival
// order. It is the in-memory sink the test suites assert against; when
// Err is set each Notify returns it, which exercises the fan-out error
// paths without a real sink.
type CaptureHook struct {
	Events []Event
	Err    error
	mu     sync.Mutex
}

// Notify appends the normalized event and returns the configured Err.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Events = append(h.Events, NormalizeEvent(event))
	return h.Err
}

// ByVerb returns the captured events carrying verb, oldest first.
func (h *CaptureHook) ByVerb(verb string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var matched []Event
	for _, event := range h.Events {
		if event.Verb == verb {
			matched = append(matched, event)
		}
	}
	return matched
}
