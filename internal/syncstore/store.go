// Package syncstore reconciles optimistic local mutations against
// server confirmations and real-time push updates for one resource
// type, tolerating network loss through the persistent operation queue.
package syncstore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prudhvinik1/hoodsync/internal/conflict"
	"github.com/prudhvinik1/hoodsync/internal/connectivity"
	"github.com/prudhvinik1/hoodsync/internal/ledger"
	"github.com/prudhvinik1/hoodsync/internal/models"
	"github.com/prudhvinik1/hoodsync/internal/queue"
)

var (
	// ErrNotFound is returned when Update or Delete targets an id
	// absent from the visible collection. Fails fast: no ledger entry,
	// no network attempt.
	ErrNotFound = errors.New("item not found in local collection")

	// ErrOffline is returned for operations that require connectivity
	// and are not allowed to queue, before any network attempt.
	ErrOffline = errors.New("operation requires connectivity")
)

const DefaultMaxConflicts = 50

// Remote is the abstract resource API collaborator.
type Remote interface {
	Read(ctx context.Context, endpoint string) ([]models.Resource, error)
	Create(ctx context.Context, endpoint string, payload models.Resource) (models.Resource, error)
	Update(ctx context.Context, endpoint, id string, payload models.Resource) (models.Resource, error)
	Delete(ctx context.Context, endpoint, id string) error
}

type Config struct {
	// ResourceType tags every record in this store; all ids share one
	// namespace.
	ResourceType string
	// Endpoint is the remote collection path, e.g. "/api/notices".
	Endpoint string

	// Strategy overrides the per-type default conflict strategy.
	Strategy conflict.Strategy
	// Conflict customizes detection/resolution (comparator, merge,
	// manual callback, ignore list).
	Conflict *conflict.Options

	// MaxConflicts bounds the retained conflict list.
	MaxConflicts int
	// MaxAttempts caps queue drain retries per operation.
	MaxAttempts int

	// OnError receives failures from background reconciliation paths
	// (real-time handling, queue drain) that have no awaiting caller.
	OnError func(err error, context string)

	Logger *logrus.Logger
}

type Store struct {
	cfg     Config
	remote  Remote
	queue   *queue.Queue
	ledger  *ledger.Ledger
	monitor *connectivity.Monitor
	log     *logrus.Entry

	mu        sync.Mutex
	data      []models.Resource
	loading   bool
	lastErr   error
	status    models.SyncStatus
	conflicts []models.ConflictRecord

	unsubMonitor func()
}

// New wires a store to its collaborators. The store registers with the
// monitor so an offline transition flips its status and a back-online
// transition drains the queue.
func New(cfg Config, remote Remote, q *queue.Queue, l *ledger.Ledger, m *connectivity.Monitor) *Store {
	if cfg.MaxConflicts <= 0 {
		cfg.MaxConflicts = DefaultMaxConflicts
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = queue.DefaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Store{
		cfg:     cfg,
		remote:  remote,
		queue:   q,
		ledger:  l,
		monitor: m,
		status:  models.StatusIdle,
		log: logger.WithFields(logrus.Fields{
			"component":     "syncstore",
			"resource_type": cfg.ResourceType,
		}),
	}

	if m != nil {
		if !m.IsOnline() {
			s.status = models.StatusOffline
		}
		s.unsubMonitor = m.OnEvent(func(ev connectivity.Event) {
			switch ev {
			case connectivity.EventOffline:
				s.mu.Lock()
				s.status = models.StatusOffline
				s.mu.Unlock()
			case connectivity.EventBackOnline:
				s.mu.Lock()
				s.status = models.StatusIdle
				s.mu.Unlock()
				if _, err := s.ProcessQueue(context.Background()); err != nil {
					s.reportError(err, "queue-drain")
				}
			}
		})
	}
	return s
}

// Close unregisters the store from the connectivity monitor. The queue
// and ledger have their own lifecycles since they may be shared.
func (s *Store) Close() {
	if s.unsubMonitor != nil {
		s.unsubMonitor()
	}
}

// Data returns a deep copy of the visible collection. Consumers must
// treat it as replace-only.
func (s *Store) Data() []models.Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Resource, len(s.data))
	for i, r := range s.data {
		out[i] = r.Clone()
	}
	return out
}

// Loading is true only while a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the error from the most recent remote operation, or nil.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Conflicts returns the retained conflict records, oldest first.
func (s *Store) Conflicts() []models.ConflictRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ConflictRecord, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}

// PendingOperations mirrors the queue entries belonging to this store's
// resource type.
func (s *Store) PendingOperations() []*models.PendingOperation {
	var out []*models.PendingOperation
	for _, op := range s.queue.Snapshot() {
		if op.ResourceType == s.cfg.ResourceType {
			out = append(out, op)
		}
	}
	return out
}

func (s *Store) online() bool {
	return s.monitor == nil || s.monitor.IsOnline()
}

// setStatus applies a transition unless the monitor says offline, which
// overrides everything.
func (s *Store) setStatus(st models.SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(st)
}

func (s *Store) setStatusLocked(st models.SyncStatus) {
	if st != models.StatusOffline && !s.online() {
		s.status = models.StatusOffline
		return
	}
	s.status = st
}

func (s *Store) reportError(err error, context string) {
	s.log.WithError(err).WithField("context", context).Warn("background sync error")
	if s.cfg.OnError != nil {
		s.cfg.OnError(err, context)
	}
}

func (s *Store) strategy() conflict.Strategy {
	if s.cfg.Strategy != "" {
		return s.cfg.Strategy
	}
	return conflict.DefaultStrategy(s.cfg.ResourceType)
}

// recordConflict appends a bounded audit record for a resolved
// divergence.
func (s *Store) recordConflict(resourceID string, client, server models.Resource, strategy conflict.Strategy) {
	rec := models.ConflictRecord{
		ResourceType:  s.cfg.ResourceType,
		ResourceID:    resourceID,
		DetectedAt:    time.Now(),
		ClientVersion: versionLabel(client),
		ServerVersion: versionLabel(server),
		Strategy:      string(strategy),
		Fields:        conflict.Metadata(client, server, s.cfg.Conflict),
	}

	s.mu.Lock()
	s.conflicts = append(s.conflicts, rec)
	if over := len(s.conflicts) - s.cfg.MaxConflicts; over > 0 {
		s.conflicts = s.conflicts[over:]
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"resource_id": resourceID,
		"strategy":    strategy,
		"fields":      rec.Fields,
	}).Info("conflict resolved")
}

func versionLabel(r models.Resource) string {
	if v, ok := r.Version(); ok {
		return strconv.FormatInt(v, 10)
	}
	if t, ok := r.UpdatedAt(); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return ""
}

// ---- collection helpers (callers hold s.mu) ----

func (s *Store) indexLocked(id string) int {
	for i, r := range s.data {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Store) upsertLocked(r models.Resource) {
	if idx := s.indexLocked(r.ID()); idx >= 0 {
		s.data[idx] = r
		return
	}
	s.data = append(s.data, r)
}

// replaceIDLocked swaps the record with oldID for the replacement at
// the same logical position, or appends when the placeholder is gone.
// A push event can land the replacement under its final id before the
// placeholder is swapped; that copy is dropped so ids stay unique.
func (s *Store) replaceIDLocked(oldID string, r models.Resource) {
	if newID := r.ID(); newID != oldID {
		if dup := s.indexLocked(newID); dup >= 0 {
			s.data = append(s.data[:dup], s.data[dup+1:]...)
		}
	}
	if idx := s.indexLocked(oldID); idx >= 0 {
		s.data[idx] = r
		return
	}
	s.upsertLocked(r)
}

func (s *Store) removeLocked(id string) int {
	idx := s.indexLocked(id)
	if idx < 0 {
		return -1
	}
	s.data = append(s.data[:idx], s.data[idx+1:]...)
	return idx
}

func (s *Store) insertAtLocked(idx int, r models.Resource) {
	if idx < 0 || idx > len(s.data) {
		idx = len(s.data)
	}
	s.data = append(s.data, nil)
	copy(s.data[idx+1:], s.data[idx:])
	s.data[idx] = r
}

// sanitize strips client-only bookkeeping before a payload goes on the
// wire.
func sanitize(r models.Resource) models.Resource {
	out := r.Clone()
	delete(out, models.FieldOptimistic)
	if models.IsTempID(out.ID()) {
		delete(out, models.FieldID)
	}
	return out
}
