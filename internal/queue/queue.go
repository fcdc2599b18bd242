// Package queue holds mutations that could not reach the server in a
// durable FIFO list that survives restarts. Each operation carries an
// attempt counter; Process drains the queue through a caller-supplied
// apply function.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prudhvinik1/hoodsync/internal/kv"
	"github.com/prudhvinik1/hoodsync/internal/models"
)

const DefaultMaxAttempts = 5

type EventType string

const (
	EventQueued  EventType = "operation-queued"
	EventRemoved EventType = "operation-removed"
	EventUpdated EventType = "operation-updated"
	EventCleared EventType = "queue-cleared"
)

type Event struct {
	Type      EventType
	Operation *models.PendingOperation // nil for queue-cleared
}

type Queue struct {
	mu       sync.Mutex
	store    kv.Store
	key      string
	ops      []*models.PendingOperation
	handlers map[int]func(Event)
	nextID   int
	log      *logrus.Entry
}

// New loads any previously persisted operations from the store so a
// restart mid-drain loses nothing.
func New(ctx context.Context, store kv.Store, key string, logger *logrus.Logger) (*Queue, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	q := &Queue{
		store:    store,
		key:      key,
		handlers: make(map[int]func(Event)),
		log:      logger.WithField("component", "queue"),
	}
	if err := q.load(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) load(ctx context.Context) error {
	raw, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}
	if !ok {
		return nil
	}
	var ops []*models.PendingOperation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return fmt.Errorf("failed to decode queue: %w", err)
	}
	q.ops = ops
	q.log.WithField("pending", len(ops)).Info("queue restored")
	return nil
}

// persistLocked writes the whole slice under one key, load-modify-store.
func (q *Queue) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(q.ops)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	if err := q.store.Set(ctx, q.key, raw); err != nil {
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	return nil
}

// OnEvent registers an observer and returns its unregister function.
func (q *Queue) OnEvent(fn func(Event)) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.handlers[id] = fn
	q.mu.Unlock()
	return func() {
		q.mu.Lock()
		delete(q.handlers, id)
		q.mu.Unlock()
	}
}

func (q *Queue) emit(ev Event) {
	q.mu.Lock()
	handlers := make([]func(Event), 0, len(q.handlers))
	for _, h := range q.handlers {
		handlers = append(handlers, h)
	}
	q.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Add assigns an id, stamps queuedAt, resets the attempt counter,
// appends and persists. Returns the operation id.
func (q *Queue) Add(ctx context.Context, op *models.PendingOperation) (string, error) {
	if op.ID == "" {
		op.ID = models.NewOperationID()
	}
	op.QueuedAt = time.Now()
	op.Attempts = 0

	q.mu.Lock()
	q.ops = append(q.ops, op)
	err := q.persistLocked(ctx)
	if err != nil {
		q.ops = q.ops[:len(q.ops)-1]
	}
	q.mu.Unlock()
	if err != nil {
		return "", err
	}

	q.log.WithFields(logrus.Fields{
		"operation": op.ID,
		"type":      op.Type,
		"resource":  op.ResourceType,
	}).Info("operation queued")
	q.emit(Event{Type: EventQueued, Operation: op.Clone()})
	return op.ID, nil
}

// Remove deletes the operation if present; removing an unknown id is an
// idempotent no-op returning false.
func (q *Queue) Remove(ctx context.Context, operationID string) (bool, error) {
	q.mu.Lock()
	idx := q.indexLocked(operationID)
	if idx < 0 {
		q.mu.Unlock()
		return false, nil
	}
	removed := q.ops[idx]
	q.ops = append(q.ops[:idx], q.ops[idx+1:]...)
	err := q.persistLocked(ctx)
	q.mu.Unlock()
	if err != nil {
		return false, err
	}

	q.emit(Event{Type: EventRemoved, Operation: removed.Clone()})
	return true, nil
}

// Update applies the mutator to the operation and persists; used to
// record attempt and error metadata. Returns false for unknown ids.
func (q *Queue) Update(ctx context.Context, operationID string, mutate func(*models.PendingOperation)) (bool, error) {
	q.mu.Lock()
	idx := q.indexLocked(operationID)
	if idx < 0 {
		q.mu.Unlock()
		return false, nil
	}
	mutate(q.ops[idx])
	updated := q.ops[idx].Clone()
	err := q.persistLocked(ctx)
	q.mu.Unlock()
	if err != nil {
		return false, err
	}

	q.emit(Event{Type: EventUpdated, Operation: updated})
	return true, nil
}

// Snapshot returns a copy of the queue in FIFO order.
func (q *Queue) Snapshot() []*models.PendingOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*models.PendingOperation, len(q.ops))
	for i, op := range q.ops {
		out[i] = op.Clone()
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Clear empties the queue and persists the empty state.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	q.ops = nil
	err := q.persistLocked(ctx)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.emit(Event{Type: EventCleared})
	return nil
}

func (q *Queue) indexLocked(operationID string) int {
	for i, op := range q.ops {
		if op.ID == operationID {
			return i
		}
	}
	return -1
}
