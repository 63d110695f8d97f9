package model

import (
	"fmt"
	"path/filepath"
	"time"
)

// CentroidsFile holds the parameters of an in-process centroid model.
const CentroidsFile = "centroids.json"

// Open returns a classifier session for m. Models without an executable
// are centroid models loaded in process; all others are started as
// subprocesses. The caller closes the returned classifier.
func Open(m *Model, timeout time.Duration) (Classifier, error) {
	if m.Manifest.Executable != "" {
		return Start(m, timeout)
	}

	c, err := LoadCentroids(filepath.Join(m.Path, CentroidsFile))
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", m.Manifest.Name, err)
	}
	if c.Shape() != m.Manifest.Shape() {
		return nil, fmt.Errorf("model %s: manifest shape %+v does not match centroids %+v",
			m.Manifest.Name, m.Manifest.Shape(), c.Shape())
	}
	return c, nil
}
