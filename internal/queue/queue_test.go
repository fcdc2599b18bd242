package queue

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/hoodsync/internal/kv"
	"github.com/prudhvinik1/hoodsync/internal/models"
)

func newTestQueue(t *testing.T) (*Queue, kv.Store) {
	t.Helper()
	store := kv.NewMemory()
	q, err := New(context.Background(), store, "test:queue", logrus.New())
	require.NoError(t, err)
	return q, store
}

func makeOp(resourceID string) *models.PendingOperation {
	return &models.PendingOperation{
		Type:         models.OpUpdate,
		ResourceType: models.TypeNotice,
		Endpoint:     "/api/notices",
		Method:       http.MethodPut,
		ResourceID:   resourceID,
		Payload:      models.Resource{"id": resourceID, "title": "hello"},
	}
}

// TestQueue_AddAssignsMetadata tests id assignment, queuedAt stamping
// and the attempt counter reset
func TestQueue_AddAssignsMetadata(t *testing.T) {
	q, _ := newTestQueue(t)

	op := makeOp("n1")
	op.Attempts = 3
	id, err := q.Add(context.Background(), op)
	require.NoError(t, err)

	assert.NotEmpty(t, id)
	assert.Equal(t, 1, q.Len())

	stored := q.Snapshot()[0]
	assert.Equal(t, id, stored.ID)
	assert.False(t, stored.QueuedAt.IsZero())
	assert.Equal(t, 0, stored.Attempts)
}

// TestQueue_FIFOOrder tests that operations come back in insertion order
func TestQueue_FIFOOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, rid := range []string{"a", "b", "c"} {
		_, err := q.Add(ctx, makeOp(rid))
		require.NoError(t, err)
	}

	snapshot := q.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "a", snapshot[0].ResourceID)
	assert.Equal(t, "b", snapshot[1].ResourceID)
	assert.Equal(t, "c", snapshot[2].ResourceID)
}

// TestQueue_RemoveUnknownIsNoOp tests idempotent removal
func TestQueue_RemoveUnknownIsNoOp(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Add(ctx, makeOp("n1"))
	require.NoError(t, err)

	removed, err := q.Remove(ctx, id)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, q.Len())

	removed, err = q.Remove(ctx, id)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = q.Remove(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, removed)
}

// TestQueue_SurvivesRestart tests that a new queue over the same store
// restores the pending operations
func TestQueue_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	q1, err := New(ctx, store, "test:queue", logrus.New())
	require.NoError(t, err)
	id1, err := q1.Add(ctx, makeOp("n1"))
	require.NoError(t, err)
	_, err = q1.Add(ctx, makeOp("n2"))
	require.NoError(t, err)

	// Simulated restart: fresh queue, same backing store.
	q2, err := New(ctx, store, "test:queue", logrus.New())
	require.NoError(t, err)

	require.Equal(t, 2, q2.Len())
	snapshot := q2.Snapshot()
	assert.Equal(t, id1, snapshot[0].ID)
	assert.Equal(t, "n1", snapshot[0].ResourceID)
	assert.Equal(t, "n2", snapshot[1].ResourceID)
}

// TestQueue_Events tests the observer notifications
func TestQueue_Events(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var events []EventType
	unsubscribe := q.OnEvent(func(ev Event) { events = append(events, ev.Type) })

	id, err := q.Add(ctx, makeOp("n1"))
	require.NoError(t, err)
	_, err = q.Update(ctx, id, func(op *models.PendingOperation) { op.Attempts++ })
	require.NoError(t, err)
	_, err = q.Remove(ctx, id)
	require.NoError(t, err)
	require.NoError(t, q.Clear(ctx))

	assert.Equal(t, []EventType{EventQueued, EventUpdated, EventRemoved, EventCleared}, events)

	unsubscribe()
	_, err = q.Add(ctx, makeOp("n2"))
	require.NoError(t, err)
	assert.Len(t, events, 4, "unsubscribed observer must not fire")
}

// TestProcess_EmptyQueue tests that draining an empty queue is an
// idempotent no-op
func TestProcess_EmptyQueue(t *testing.T) {
	q, _ := newTestQueue(t)

	result, err := q.Process(context.Background(), func(ctx context.Context, op *models.PendingOperation) error {
		t.Fatal("apply must not be called")
		return nil
	}, ProcessOptions{RemoveOnSuccess: true})

	require.NoError(t, err)
	assert.Equal(t, ProcessResult{}, result)
}

// TestProcess_RemoveOnSuccess tests the happy-path drain
func TestProcess_RemoveOnSuccess(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, rid := range []string{"a", "b", "c"} {
		_, err := q.Add(ctx, makeOp(rid))
		require.NoError(t, err)
	}

	var applied []string
	result, err := q.Process(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		applied = append(applied, op.ResourceID)
		return nil
	}, ProcessOptions{RemoveOnSuccess: true})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"a", "b", "c"}, applied)
	assert.Equal(t, 0, q.Len())
}

// TestProcess_FailureKeepsOperation tests that failed operations stay
// queued with attempt and error metadata recorded
func TestProcess_FailureKeepsOperation(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Add(ctx, makeOp("n1"))
	require.NoError(t, err)

	result, err := q.Process(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		return errors.New("server unavailable")
	}, ProcessOptions{RemoveOnSuccess: true})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, id, result.Errors[0].OperationID)

	require.Equal(t, 1, q.Len())
	stored := q.Snapshot()[0]
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastAttempt)
	assert.Contains(t, stored.LastError, "server unavailable")
}

// TestProcess_ContinuesPastFailures tests that one failure does not
// abort the batch by default
func TestProcess_ContinuesPastFailures(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, rid := range []string{"bad", "good"} {
		_, err := q.Add(ctx, makeOp(rid))
		require.NoError(t, err)
	}

	result, err := q.Process(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		if op.ResourceID == "bad" {
			return errors.New("rejected")
		}
		return nil
	}, ProcessOptions{RemoveOnSuccess: true})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, q.Len(), "only the failed operation remains")
}

// TestProcess_StopOnError tests the abort-at-first-failure mode
func TestProcess_StopOnError(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, rid := range []string{"bad", "good"} {
		_, err := q.Add(ctx, makeOp(rid))
		require.NoError(t, err)
	}

	var applied int
	result, err := q.Process(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		applied++
		return errors.New("down")
	}, ProcessOptions{StopOnError: true})

	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Failed)
}

// TestProcess_ApplySeesCurrentAttempt tests that the operation handed
// to apply carries the attempt it is part of, not the previous count
func TestProcess_ApplySeesCurrentAttempt(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Add(ctx, makeOp("n1"))
	require.NoError(t, err)

	var seen []int
	apply := func(ctx context.Context, op *models.PendingOperation) error {
		seen = append(seen, op.Attempts)
		require.NotNil(t, op.LastAttempt)
		return errors.New("keep retrying")
	}

	_, err = q.Process(ctx, apply, ProcessOptions{})
	require.NoError(t, err)
	_, err = q.Process(ctx, apply, ProcessOptions{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, q.Snapshot()[0].Attempts, "persisted count matches")
}

// TestProcess_SkipsAtAttemptCap tests that capped operations are left
// alone for manual intervention
func TestProcess_SkipsAtAttemptCap(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Add(ctx, makeOp("n1"))
	require.NoError(t, err)
	_, err = q.Update(ctx, id, func(op *models.PendingOperation) { op.Attempts = 2 })
	require.NoError(t, err)

	result, err := q.Process(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		t.Fatal("capped operation must not be applied")
		return nil
	}, ProcessOptions{MaxAttempts: 2})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 1, q.Len())
}

// TestProcess_RecoversFromPanic tests that a panicking apply is treated
// as a failed operation, not a crashed drain
func TestProcess_RecoversFromPanic(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Add(ctx, makeOp("n1"))
	require.NoError(t, err)

	result, err := q.Process(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		panic("boom")
	}, ProcessOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Err.Error(), "boom")
}
