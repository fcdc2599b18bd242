package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

// noticeAPI is a minimal community-notice backend used to exercise the
// sync engine end to end. It stands in for the real REST layer, which
// owns the production wire formats.
type noticeAPI struct {
	mu      sync.Mutex
	notices []models.Resource
	hub     *wsHub
}

func newNoticeAPI(hub *wsHub) *noticeAPI {
	return &noticeAPI{hub: hub}
}

func (a *noticeAPI) routes(r chi.Router) {
	r.Get("/api/notices", a.list)
	r.Post("/api/notices", a.create)
	r.Put("/api/notices/{id}", a.update)
	r.Delete("/api/notices/{id}", a.delete)
}

func (a *noticeAPI) list(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	out := make([]models.Resource, len(a.notices))
	for i, n := range a.notices {
		out[i] = n.Clone()
	}
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (a *noticeAPI) create(w http.ResponseWriter, r *http.Request) {
	var payload models.Resource
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	payload[models.FieldID] = uuid.New().String()
	payload[models.FieldCreatedAt] = now
	payload[models.FieldUpdatedAt] = now
	payload[models.FieldVersion] = 1

	a.mu.Lock()
	a.notices = append(a.notices, payload)
	a.mu.Unlock()

	a.hub.Broadcast(models.TypeNotice, "created", payload)
	writeJSON(w, http.StatusCreated, payload)
}

func (a *noticeAPI) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload models.Resource
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	idx := -1
	for i, n := range a.notices {
		if n.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		http.Error(w, "notice not found", http.StatusNotFound)
		return
	}
	updated := a.notices[idx].Clone()
	for k, v := range payload {
		if k == models.FieldID || k == models.FieldVersion || k == models.FieldCreatedAt {
			continue
		}
		updated[k] = v
	}
	if v, ok := updated.Version(); ok {
		updated[models.FieldVersion] = v + 1
	}
	updated[models.FieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
	a.notices[idx] = updated
	a.mu.Unlock()

	a.hub.Broadcast(models.TypeNotice, "updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (a *noticeAPI) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a.mu.Lock()
	idx := -1
	for i, n := range a.notices {
		if n.ID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		http.Error(w, "notice not found", http.StatusNotFound)
		return
	}
	removed := a.notices[idx]
	a.notices = append(a.notices[:idx], a.notices[idx+1:]...)
	a.mu.Unlock()

	a.hub.Broadcast(models.TypeNotice, "deleted", removed)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
