// Package connectivity tracks online/offline transitions from platform
// signals and notifies registered observers.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prudhvinik1/hoodsync/internal/backoff"
)

type Event string

const (
	// EventOffline fires on every online->offline transition.
	EventOffline Event = "offline"
	// EventBackOnline fires on an offline->online transition after at
	// least one offline period was observed.
	EventBackOnline Event = "back-online"
)

// ProbeFunc checks reachability of some well-known endpoint. It must
// return quickly; a true result upgrades the monitor to online.
type ProbeFunc func(ctx context.Context) bool

type Monitor struct {
	mu         sync.Mutex
	online     bool
	wasOffline bool
	handlers   map[int]func(Event)
	nextID     int
	log        *logrus.Entry
}

// NewMonitor starts in the online state; platform signals drive it from
// there via SetOnline.
func NewMonitor(logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Monitor{
		online:   true,
		handlers: make(map[int]func(Event)),
		log:      logger.WithField("component", "connectivity"),
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// WasOffline reports whether any offline period has been observed since
// the last back-online transition was processed.
func (m *Monitor) WasOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wasOffline
}

// OnEvent registers an observer and returns its unregister function.
func (m *Monitor) OnEvent(fn func(Event)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

// SetOnline feeds a platform connectivity signal into the monitor.
// Repeated signals for the current state are no-ops.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}

	var event Event
	var fire bool
	if online {
		m.online = true
		if m.wasOffline {
			event, fire = EventBackOnline, true
			m.wasOffline = false
		}
	} else {
		m.online = false
		m.wasOffline = true
		event, fire = EventOffline, true
	}
	handlers := m.snapshotHandlersLocked()
	m.mu.Unlock()

	if !fire {
		return
	}
	m.log.WithField("event", event).Info("connectivity changed")
	for _, h := range handlers {
		h(event)
	}
}

// RunProbe polls the probe while offline and upgrades to online on the
// first success. A failed probe never downgrades an online reading;
// platform signals alone drive the offline transition. Delays between
// polls follow the backoff policy. Blocks until ctx is done.
func (m *Monitor) RunProbe(ctx context.Context, probe ProbeFunc, policy backoff.Policy) {
	if probe == nil {
		return
	}
	attempt := 0
	for {
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(policy.Delay(attempt)):
		}

		if m.IsOnline() {
			attempt = 0
			continue
		}
		if probe(ctx) {
			m.log.Info("reachability probe succeeded, upgrading to online")
			m.SetOnline(true)
			attempt = 0
		}
	}
}

func (m *Monitor) snapshotHandlersLocked() []func(Event) {
	out := make([]func(Event), 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h)
	}
	return out
}
