package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/split"
	"github.com/ayusman/mudra/internal/store"
)

// SnapshotHandler serves split snapshots with their assignments.
type SnapshotHandler struct {
	store *store.Store
}

// NewSnapshotHandler creates a new SnapshotHandler with the given store.
func NewSnapshotHandler(s *store.Store) *SnapshotHandler {
	return &SnapshotHandler{store: s}
}

type snapshotResponse struct {
	ID          string             `json:"id"`
	Ratios      split.Ratios       `json:"ratios"`
	Seed        uint64             `json:"seed"`
	CreatedAt   string             `json:"created_at"`
	Counts      map[string]int     `json:"counts"`
	Assignments []store.Assignment `json:"assignments"`
}

// ServeHTTP handles GET /api/snapshots/latest and /api/snapshots/{id}.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/snapshots"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	repo := h.store.Snapshots()

	var snap *store.Snapshot
	var err error
	if id == "latest" {
		snap, err = repo.Latest()
	} else {
		snap, err = repo.Get(id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get snapshot")
		return
	}

	assignments, err := repo.Assignments(snap.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments")
		return
	}
	if assignments == nil {
		assignments = []store.Assignment{}
	}

	counts := make(map[string]int, len(split.All))
	for _, name := range split.All {
		counts[string(name)] = 0
	}
	for _, a := range assignments {
		counts[string(a.Split)]++
	}

	writeJSON(w, http.StatusOK, snapshotResponse{
		ID:          snap.ID,
		Ratios:      snap.Ratios,
		Seed:        snap.Seed,
		CreatedAt:   formatTime(snap.CreatedAt),
		Counts:      counts,
		Assignments: assignments,
	})
}
