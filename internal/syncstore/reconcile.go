package syncstore

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prudhvinik1/hoodsync/internal/conflict"
	"github.com/prudhvinik1/hoodsync/internal/models"
	"github.com/prudhvinik1/hoodsync/internal/queue"
	"github.com/prudhvinik1/hoodsync/internal/realtime"
)

// ProcessQueue drains the persistent queue through the remote API,
// applying the same ledger-confirm and collection-replace logic as the
// direct path. No-op while offline. Per-operation failures are recorded
// in the result, not thrown.
func (s *Store) ProcessQueue(ctx context.Context) (queue.ProcessResult, error) {
	if !s.online() {
		return queue.ProcessResult{}, nil
	}

	s.setStatus(models.StatusSyncing)
	result, err := s.queue.Process(ctx, s.applyOperation, queue.ProcessOptions{
		RemoveOnSuccess: true,
		MaxAttempts:     s.cfg.MaxAttempts,
	})
	s.setStatus(models.StatusIdle)

	if err != nil {
		return result, fmt.Errorf("queue drain aborted: %w", err)
	}
	s.log.WithFields(map[string]any{
		"total":      result.Total,
		"successful": result.Successful,
		"failed":     result.Failed,
		"skipped":    result.Skipped,
	}).Info("queue drained")
	return result, nil
}

// applyOperation replays one queued mutation. Operations for other
// resource types may share the queue; they are dispatched against their
// own endpoints with the same remote client.
func (s *Store) applyOperation(ctx context.Context, op *models.PendingOperation) error {
	switch op.Type {
	case models.OpCreate:
		server, err := s.remote.Create(ctx, op.Endpoint, sanitize(op.Payload))
		if err != nil {
			return err
		}
		if op.UpdateID != "" {
			s.ledger.Confirm(op.UpdateID, server)
		}
		s.mu.Lock()
		if op.TempID != "" {
			s.replaceIDLocked(op.TempID, server)
		} else {
			s.upsertLocked(server)
		}
		s.mu.Unlock()
		return nil

	case models.OpUpdate:
		server, err := s.remote.Update(ctx, op.Endpoint, op.ResourceID, sanitize(op.Payload))
		if err != nil {
			return err
		}
		if op.UpdateID != "" {
			s.ledger.Confirm(op.UpdateID, server)
		}
		s.mu.Lock()
		s.replaceIDLocked(op.ResourceID, server)
		s.mu.Unlock()
		return nil

	case models.OpDelete:
		if err := s.remote.Delete(ctx, op.Endpoint, op.ResourceID); err != nil {
			return err
		}
		if op.UpdateID != "" {
			s.ledger.Confirm(op.UpdateID, nil)
		}
		s.mu.Lock()
		s.removeLocked(op.ResourceID)
		s.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

// HandleRealtime merges one pushed snapshot into the collection. With
// no in-flight optimistic update for the id the push applies directly;
// otherwise the resolver adjudicates, client-favoring resolutions are
// re-sent (or queued while offline), and any error along the way rolls
// the optimistic update back to server truth. Errors are routed to
// OnError since no caller awaits this path.
func (s *Store) HandleRealtime(ctx context.Context, pushed models.Resource) {
	id := pushed.ID()
	if id == "" {
		s.reportError(fmt.Errorf("realtime event without id"), "realtime")
		return
	}

	pending := s.ledger.PendingFor(s.cfg.ResourceType, id)
	if pending == nil {
		s.mu.Lock()
		s.upsertLocked(pushed.Clone())
		s.mu.Unlock()
		return
	}

	optimistic := pending.Optimistic
	if !conflict.Detect(optimistic, pushed, s.cfg.Conflict) {
		s.ledger.Confirm(pending.ID, pushed)
		s.mu.Lock()
		s.upsertLocked(pushed.Clone())
		s.mu.Unlock()
		return
	}

	strategy := s.strategy()
	resolved, err := conflict.Resolve(ctx, optimistic, pushed, s.cfg.ResourceType, strategy, s.cfg.Conflict)
	if err != nil {
		// A failing custom resolver rolls the optimistic update back;
		// the pushed snapshot becomes ground truth.
		s.ledger.Rollback(pending.ID, err)
		s.mu.Lock()
		s.upsertLocked(pushed.Clone())
		s.mu.Unlock()
		s.reportError(fmt.Errorf("conflict resolution failed: %w", err), "realtime")
		return
	}
	s.recordConflict(id, optimistic, pushed, strategy)

	if len(conflict.Metadata(resolved, pushed, s.cfg.Conflict)) > 0 {
		// Client-favoring resolution: converge the server on it.
		if s.online() {
			resent, serr := s.remote.Update(ctx, s.cfg.Endpoint, id, sanitize(resolved))
			if serr != nil {
				s.ledger.Rollback(pending.ID, serr)
				s.mu.Lock()
				s.upsertLocked(pushed.Clone())
				s.mu.Unlock()
				s.reportError(fmt.Errorf("conflict re-sync failed: %w", serr), "realtime")
				return
			}
			resolved = resent
		} else {
			op := &models.PendingOperation{
				Type:         models.OpUpdate,
				ResourceType: s.cfg.ResourceType,
				Endpoint:     s.cfg.Endpoint,
				Method:       http.MethodPut,
				ResourceID:   id,
				Payload:      sanitize(resolved),
				UpdateID:     pending.ID,
			}
			if _, qerr := s.queue.Add(ctx, op); qerr != nil {
				s.reportError(fmt.Errorf("failed to queue re-sync: %w", qerr), "realtime")
			}
		}
	}

	s.ledger.Confirm(pending.ID, resolved)
	s.mu.Lock()
	s.upsertLocked(resolved.Clone())
	s.mu.Unlock()
}

// SubscribeRealtime attaches the store to a push feed for its resource
// type; returns the unsubscribe function.
func (s *Store) SubscribeRealtime(sub realtime.Subscriber, filter realtime.FilterFunc) (func(), error) {
	return sub.Subscribe(s.cfg.ResourceType, filter, func(ev realtime.Event) {
		s.HandleRealtime(context.Background(), ev.Data)
	})
}
