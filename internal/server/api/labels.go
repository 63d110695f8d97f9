package api

import (
	"net/http"

	"github.com/ayusman/mudra/internal/labels"
)

// LabelsHandler serves the label manifest of the loaded model.
type LabelsHandler struct {
	manifest *labels.Manifest
}

// NewLabelsHandler creates a LabelsHandler for m.
func NewLabelsHandler(m *labels.Manifest) *LabelsHandler {
	return &LabelsHandler{manifest: m}
}

type labelsResponse struct {
	Labels []string `json:"labels"`
	Layout string   `json:"layout"`
	Size   int      `json:"features"`
}

func (h *LabelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, labelsResponse{
		Labels: h.manifest.Labels,
		Layout: h.manifest.Layout.String(),
		Size:   h.manifest.Layout.Size(),
	})
}
