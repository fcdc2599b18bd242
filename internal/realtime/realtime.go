// Package realtime delivers push notifications of remote changes per
// resource type, with optional per-subscription filtering. The Hub is
// the in-process implementation; ws.go adapts a websocket feed onto it.
package realtime

import (
	"sync"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// Event is one pushed change. Data.id matches the id scheme used by
// the REST API.
type Event struct {
	Type string          `json:"type"`
	Data models.Resource `json:"data"`
}

type FilterFunc func(Event) bool

type HandlerFunc func(Event)

// Subscriber is the boundary the sync store consumes.
type Subscriber interface {
	// Subscribe delivers matching events for one resource type until
	// the returned unsubscribe function is called.
	Subscribe(resourceType string, filter FilterFunc, handler HandlerFunc) (func(), error)
}

type subscription struct {
	filter  FilterFunc
	handler HandlerFunc
}

// Hub fans events out to subscribers, keyed by resource type.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int]*subscription
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]*subscription)}
}

func (h *Hub) Subscribe(resourceType string, filter FilterFunc, handler HandlerFunc) (func(), error) {
	h.mu.Lock()
	if h.subs[resourceType] == nil {
		h.subs[resourceType] = make(map[int]*subscription)
	}
	id := h.nextID
	h.nextID++
	h.subs[resourceType][id] = &subscription{filter: filter, handler: handler}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs[resourceType], id)
		h.mu.Unlock()
	}, nil
}

// Publish delivers an event to every matching subscriber. Handlers run
// on the caller's goroutine; the sync store never blocks here beyond a
// ledger lookup.
func (h *Hub) Publish(resourceType string, ev Event) {
	h.mu.RLock()
	handlers := make([]*subscription, 0, len(h.subs[resourceType]))
	for _, s := range h.subs[resourceType] {
		handlers = append(handlers, s)
	}
	h.mu.RUnlock()

	for _, s := range handlers {
		if s.filter != nil && !s.filter(ev) {
			continue
		}
		s.handler(ev)
	}
}
