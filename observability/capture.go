package observability

import (
	"context"
	"slices"
	"sync"
)

// CaptureObserver records every event it receives. Safe for concurrent use.
type CaptureObserver struct {
	mu     sync.Mutex
	events []Event
}

func (c *CaptureObserver) OnEvent(_ context.Context, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of the recorded events in arrival order.
func (c *CaptureObserver) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// OfType returns the recorded events with the given type.
func (c *CaptureObserver) OfType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
