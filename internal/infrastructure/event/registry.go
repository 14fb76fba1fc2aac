package event

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/erp/pos/internal/domain/shared"
)

// anyEvent is the routing key of handlers subscribed to every event type
const anyEvent = "*"

// routes is an immutable event type to handlers table
type routes map[string][]shared.EventHandler

// routingTable holds the current routes. Writers copy the table and swap it in,
// so Publish reads it without locking.
type routingTable struct {
	mu      sync.Mutex
	current atomic.Pointer[routes]
}

func newRoutingTable() *routingTable {
	t := &routingTable{}
	t.current.Store(&routes{})
	return t
}

// add routes eventTypes to h, or every type when none are given.
// Adding the same handler twice for a type keeps a single route.
func (t *routingTable) add(h shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = []string{anyEvent}
	}
	t.update(func(next routes) {
		for _, et := range eventTypes {
			if !slices.Contains(next[et], h) {
				next[et] = append(slices.Clone(next[et]), h)
			}
		}
	})
}

// remove drops every route to h
func (t *routingTable) remove(h shared.EventHandler) {
	t.update(func(next routes) {
		for et, hs := range next {
			hs = slices.DeleteFunc(slices.Clone(hs), func(x shared.EventHandler) bool { return x == h })
			if len(hs) == 0 {
				delete(next, et)
			} else {
				next[et] = hs
			}
		}
	})
}

func (t *routingTable) update(fn func(routes)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := maps.Clone(*t.current.Load())
	if next == nil {
		next = routes{}
	}
	fn(next)
	t.current.Store(&next)
}

// lookup returns the handlers for eventType, then the catch-all handlers.
// A handler routed both ways appears once.
func (t *routingTable) lookup(eventType string) []shared.EventHandler {
	r := *t.current.Load()
	typed, all := r[eventType], r[anyEvent]
	out := make([]shared.EventHandler, 0, len(typed)+len(all))
	out = append(out, typed...)
	for _, h := range all {
		if !slices.Contains(typed, h) {
			out = append(out, h)
		}
	}
	return out
}
