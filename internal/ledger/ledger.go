// Package ledger is the in-memory registry of optimistic updates. It
// answers "is there an in-flight local mutation for this resource?" for
// the real-time merge path, and garbage-collects entries a short grace
// delay after they confirm or roll back so late-arriving push events
// can still find them.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// DefaultGraceDelay keeps settled entries visible long enough for push
// events already in flight to match them.
const DefaultGraceDelay = 5 * time.Second

type EventType string

const (
	EventRegistered EventType = "update-registered"
	EventConfirmed  EventType = "update-confirmed"
	EventRolledBack EventType = "update-rolled-back"
)

type Event struct {
	Type   EventType
	Update *models.OptimisticUpdate
}

type entry struct {
	update *models.OptimisticUpdate
	seq    uint64
}

type Ledger struct {
	mu       sync.Mutex
	entries  map[string]*entry
	timers   map[string]*time.Timer
	seq      uint64
	grace    time.Duration
	handlers map[int]func(Event)
	nextID   int
	closed   bool
	log      *logrus.Entry
}

func New(grace time.Duration, logger *logrus.Logger) *Ledger {
	if grace <= 0 {
		grace = DefaultGraceDelay
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ledger{
		entries:  make(map[string]*entry),
		timers:   make(map[string]*time.Timer),
		grace:    grace,
		handlers: make(map[int]func(Event)),
		log:      logger.WithField("component", "ledger"),
	}
}

// OnEvent registers an observer and returns its unregister function.
func (l *Ledger) OnEvent(fn func(Event)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}
}

// Register records a pending optimistic update and returns its id.
// Original is nil for creates.
func (l *Ledger) Register(resourceType, resourceID string, original, optimistic models.Resource) string {
	update := &models.OptimisticUpdate{
		ID:           uuid.New().String(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Original:     original.Clone(),
		Optimistic:   optimistic.Clone(),
		Status:       models.UpdatePending,
		RegisteredAt: time.Now(),
	}

	l.mu.Lock()
	l.seq++
	l.entries[update.ID] = &entry{update: update, seq: l.seq}
	l.mu.Unlock()

	l.emit(Event{Type: EventRegistered, Update: update})
	return update.ID
}

// Confirm marks a pending update as confirmed with the server snapshot
// and schedules its removal after the grace delay. Returns false for
// unknown ids or updates that already left pending.
func (l *Ledger) Confirm(updateID string, server models.Resource) bool {
	return l.settle(updateID, func(u *models.OptimisticUpdate) {
		u.Status = models.UpdateConfirmed
		u.ServerData = server.Clone()
	}, EventConfirmed)
}

// Rollback marks a pending update as rolled back with the failure and
// schedules its removal after the grace delay.
func (l *Ledger) Rollback(updateID string, cause error) bool {
	return l.settle(updateID, func(u *models.OptimisticUpdate) {
		u.Status = models.UpdateRolledBack
		if cause != nil {
			u.Error = cause.Error()
		}
	}, EventRolledBack)
}

func (l *Ledger) settle(updateID string, apply func(*models.OptimisticUpdate), eventType EventType) bool {
	l.mu.Lock()
	e, ok := l.entries[updateID]
	if !ok || e.update.Status != models.UpdatePending {
		l.mu.Unlock()
		return false
	}
	apply(e.update)
	update := e.update
	l.scheduleCleanupLocked(updateID)
	l.mu.Unlock()

	l.emit(Event{Type: eventType, Update: update})
	return true
}

// PendingForType returns all still-pending updates for a resource type.
func (l *Ledger) PendingForType(resourceType string) []*models.OptimisticUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.OptimisticUpdate
	for _, e := range l.entries {
		if e.update.Status == models.UpdatePending && e.update.ResourceType == resourceType {
			out = append(out, e.update)
		}
	}
	return out
}

// PendingFor returns the most recently registered pending update for
// one resource, or nil.
func (l *Ledger) PendingFor(resourceType, resourceID string) *models.OptimisticUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()
	var best *entry
	for _, e := range l.entries {
		if e.update.Status != models.UpdatePending {
			continue
		}
		if e.update.ResourceType != resourceType || e.update.ResourceID != resourceID {
			continue
		}
		if best == nil || e.seq > best.seq {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.update
}

// OptimisticData returns the latest pending optimistic snapshot for a
// resource, or nil when none is in flight.
func (l *Ledger) OptimisticData(resourceType, resourceID string) models.Resource {
	if u := l.PendingFor(resourceType, resourceID); u != nil {
		return u.Optimistic.Clone()
	}
	return nil
}

// ApplyToCollection substitutes each resource with its pending
// optimistic snapshot, when one exists, so a fresh server read does not
// wipe in-flight local edits.
func (l *Ledger) ApplyToCollection(resourceType string, resources []models.Resource) []models.Resource {
	out := make([]models.Resource, len(resources))
	for i, r := range resources {
		if data := l.OptimisticData(resourceType, r.ID()); data != nil {
			out[i] = data
			continue
		}
		out[i] = r
	}
	return out
}

// Close cancels pending cleanup timers and drops all entries.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
	l.entries = make(map[string]*entry)
	l.handlers = make(map[int]func(Event))
}

func (l *Ledger) scheduleCleanupLocked(updateID string) {
	if l.closed {
		delete(l.entries, updateID)
		return
	}
	l.timers[updateID] = time.AfterFunc(l.grace, func() {
		l.mu.Lock()
		delete(l.entries, updateID)
		delete(l.timers, updateID)
		l.mu.Unlock()
	})
}

func (l *Ledger) emit(ev Event) {
	l.mu.Lock()
	handlers := make([]func(Event), 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}
