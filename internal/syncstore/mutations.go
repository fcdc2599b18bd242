package syncstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prudhvinik1/hoodsync/internal/conflict"
	"github.com/prudhvinik1/hoodsync/internal/models"
)

// Fetch replaces the visible collection with server truth, overlaid
// with any still-pending optimistic snapshots. The collection is left
// untouched on failure.
func (s *Store) Fetch(ctx context.Context) error {
	if !s.online() {
		return ErrOffline
	}

	s.mu.Lock()
	s.loading = true
	s.setStatusLocked(models.StatusSyncing)
	s.mu.Unlock()

	resources, err := s.remote.Read(ctx, s.cfg.Endpoint)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastErr = err
		s.setStatusLocked(models.StatusError)
		return fmt.Errorf("fetch failed: %w", err)
	}
	merged := s.ledger.ApplyToCollection(s.cfg.ResourceType, resources)
	// The overlay only substitutes; a create still awaiting its drain is
	// not in the server read yet and would vanish from view.
	for _, u := range s.ledger.PendingForType(s.cfg.ResourceType) {
		if models.IsTempID(u.ResourceID) && !containsID(merged, u.ResourceID) {
			merged = append(merged, u.Optimistic.Clone())
		}
	}
	s.data = merged
	s.lastErr = nil
	s.setStatusLocked(models.StatusIdle)
	return nil
}

func containsID(resources []models.Resource, id string) bool {
	for _, r := range resources {
		if r.ID() == id {
			return true
		}
	}
	return false
}

// Create applies the new item optimistically under a temporary id, then
// either confirms it against the remote create or queues the operation
// when offline. The returned record is the server's when online and the
// optimistic one when queued.
func (s *Store) Create(ctx context.Context, data models.Resource) (models.Resource, error) {
	now := time.Now()
	tempID := models.NewTempID()

	optimistic := data.Clone()
	if optimistic == nil {
		optimistic = models.Resource{}
	}
	optimistic[models.FieldID] = tempID
	optimistic[models.FieldOptimistic] = true
	optimistic[models.FieldCreatedAt] = now
	optimistic[models.FieldUpdatedAt] = now

	updateID := s.ledger.Register(s.cfg.ResourceType, tempID, nil, optimistic)

	s.mu.Lock()
	s.data = append(s.data, optimistic.Clone())
	s.mu.Unlock()

	if !s.online() {
		op := &models.PendingOperation{
			Type:         models.OpCreate,
			ResourceType: s.cfg.ResourceType,
			Endpoint:     s.cfg.Endpoint,
			Method:       http.MethodPost,
			Payload:      sanitize(optimistic),
			TempID:       tempID,
			UpdateID:     updateID,
		}
		if _, err := s.queue.Add(ctx, op); err != nil {
			s.ledger.Rollback(updateID, err)
			s.mu.Lock()
			s.removeLocked(tempID)
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to queue create: %w", err)
		}
		return optimistic.Clone(), nil
	}

	s.setStatus(models.StatusSyncing)
	server, err := s.remote.Create(ctx, s.cfg.Endpoint, sanitize(optimistic))
	if err != nil {
		s.ledger.Rollback(updateID, err)
		s.mu.Lock()
		s.removeLocked(tempID)
		s.lastErr = err
		s.setStatusLocked(models.StatusError)
		s.mu.Unlock()
		return nil, fmt.Errorf("create failed: %w", err)
	}

	s.ledger.Confirm(updateID, server)
	s.mu.Lock()
	s.replaceIDLocked(tempID, server.Clone())
	s.lastErr = nil
	s.setStatusLocked(models.StatusIdle)
	s.mu.Unlock()
	return server, nil
}

// Update merges the patch onto the current item optimistically, then
// confirms against the remote update. A divergent server response goes
// through the conflict resolver; client-favoring resolutions are
// re-sent. Rollback restores the exact pre-update snapshot.
func (s *Store) Update(ctx context.Context, id string, patch models.Resource) (models.Resource, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	original := s.data[idx].Clone()
	s.mu.Unlock()

	optimistic := original.Clone()
	for k, v := range patch {
		optimistic[k] = models.CloneValue(v)
	}
	optimistic[models.FieldUpdatedAt] = time.Now()

	updateID := s.ledger.Register(s.cfg.ResourceType, id, original, optimistic)

	s.mu.Lock()
	s.upsertLocked(optimistic.Clone())
	s.mu.Unlock()

	if !s.online() {
		op := &models.PendingOperation{
			Type:         models.OpUpdate,
			ResourceType: s.cfg.ResourceType,
			Endpoint:     s.cfg.Endpoint,
			Method:       http.MethodPut,
			ResourceID:   id,
			Payload:      sanitize(optimistic),
			UpdateID:     updateID,
		}
		if _, err := s.queue.Add(ctx, op); err != nil {
			s.rollbackUpdate(updateID, id, original, err)
			return nil, fmt.Errorf("failed to queue update: %w", err)
		}
		return optimistic.Clone(), nil
	}

	s.setStatus(models.StatusSyncing)
	server, err := s.remote.Update(ctx, s.cfg.Endpoint, id, sanitize(optimistic))
	if err != nil {
		s.rollbackUpdate(updateID, id, original, err)
		return nil, fmt.Errorf("update failed: %w", err)
	}

	final := server
	if conflict.Detect(optimistic, server, s.cfg.Conflict) {
		strategy := s.strategy()
		resolved, rerr := conflict.Resolve(ctx, optimistic, server, s.cfg.ResourceType, strategy, s.cfg.Conflict)
		if rerr != nil {
			s.rollbackUpdate(updateID, id, original, rerr)
			return nil, fmt.Errorf("conflict resolution failed: %w", rerr)
		}
		s.recordConflict(id, optimistic, server, strategy)

		// A resolution that differs from server truth favors the
		// client; push it back so the server converges.
		if len(conflict.Metadata(resolved, server, s.cfg.Conflict)) > 0 {
			resent, serr := s.remote.Update(ctx, s.cfg.Endpoint, id, sanitize(resolved))
			if serr != nil {
				s.rollbackUpdate(updateID, id, original, serr)
				return nil, fmt.Errorf("conflict re-sync failed: %w", serr)
			}
			final = resent
		} else {
			final = resolved
		}
	}

	s.ledger.Confirm(updateID, final)
	s.mu.Lock()
	s.upsertLocked(final.Clone())
	s.lastErr = nil
	s.setStatusLocked(models.StatusIdle)
	s.mu.Unlock()
	return final, nil
}

// Delete removes the item optimistically (tombstone in the ledger) and
// confirms against the remote delete; failure restores the item at its
// previous position.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	original := s.data[idx].Clone()
	s.mu.Unlock()

	tombstone := models.Resource{
		models.FieldID:      id,
		models.FieldDeleted: true,
	}
	updateID := s.ledger.Register(s.cfg.ResourceType, id, original, tombstone)

	s.mu.Lock()
	removedAt := s.removeLocked(id)
	s.mu.Unlock()

	if !s.online() {
		op := &models.PendingOperation{
			Type:         models.OpDelete,
			ResourceType: s.cfg.ResourceType,
			Endpoint:     s.cfg.Endpoint,
			Method:       http.MethodDelete,
			ResourceID:   id,
			UpdateID:     updateID,
		}
		if _, err := s.queue.Add(ctx, op); err != nil {
			s.ledger.Rollback(updateID, err)
			s.mu.Lock()
			s.insertAtLocked(removedAt, original)
			s.mu.Unlock()
			return fmt.Errorf("failed to queue delete: %w", err)
		}
		return nil
	}

	s.setStatus(models.StatusSyncing)
	if err := s.remote.Delete(ctx, s.cfg.Endpoint, id); err != nil {
		s.ledger.Rollback(updateID, err)
		s.mu.Lock()
		s.insertAtLocked(removedAt, original)
		s.lastErr = err
		s.setStatusLocked(models.StatusError)
		s.mu.Unlock()
		return fmt.Errorf("delete failed: %w", err)
	}

	s.ledger.Confirm(updateID, nil)
	s.mu.Lock()
	s.lastErr = nil
	s.setStatusLocked(models.StatusIdle)
	s.mu.Unlock()
	return nil
}

// rollbackUpdate reverts a failed update: ledger rollback plus the
// exact pre-update snapshot back in the collection.
func (s *Store) rollbackUpdate(updateID, id string, original models.Resource, cause error) {
	s.ledger.Rollback(updateID, cause)
	s.mu.Lock()
	if idx := s.indexLocked(id); idx >= 0 {
		s.data[idx] = original
	}
	s.lastErr = cause
	s.setStatusLocked(models.StatusError)
	s.mu.Unlock()
}
