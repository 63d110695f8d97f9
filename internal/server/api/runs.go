package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/ayusman/mudra/internal/store"
)

// RunHandler serves the batch run history.
type RunHandler struct {
	store *store.Store
}

// NewRunHandler creates a new RunHandler with the given store.
func NewRunHandler(s *store.Store) *RunHandler {
	return &RunHandler{store: s}
}

type runResponse struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	Layout     string       `json:"layout,omitempty"`
	Status     string       `json:"status"`
	Counts     batch.Counts `json:"counts"`
	StartedAt  string       `json:"started_at"`
	FinishedAt string       `json:"finished_at,omitempty"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

type listItemsResponse struct {
	Items []store.RunItem `json:"items"`
}

func toRunResponse(r *store.Run) runResponse {
	resp := runResponse{
		ID:        r.ID,
		Kind:      r.Kind,
		Layout:    r.Layout,
		Status:    string(r.Status),
		Counts:    r.Counts,
		StartedAt: formatTime(r.StartedAt),
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = formatTime(*r.FinishedAt)
	}
	return resp
}

// ServeHTTP routes /api/runs, /api/runs/{id} and /api/runs/{id}/items.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/runs")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		h.list(w)
	case strings.HasSuffix(path, "/items"):
		h.items(w, strings.TrimSuffix(path, "/items"))
	case !strings.Contains(path, "/"):
		h.get(w, path)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *RunHandler) list(w http.ResponseWriter) {
	runs, err := h.store.Runs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *RunHandler) get(w http.ResponseWriter, id string) {
	run, err := h.store.Runs().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run))
}

func (h *RunHandler) items(w http.ResponseWriter, id string) {
	if _, err := h.store.Runs().Get(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	items, err := h.store.Runs().Items(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list run items")
		return
	}
	if items == nil {
		items = []store.RunItem{}
	}

	writeJSON(w, http.StatusOK, listItemsResponse{Items: items})
}
