// Package model is the boundary to trained classifiers. A classifier maps
// one input window of feature vectors to a probability per class; this
// package discovers installed models, runs them as subprocesses and ships a
// small in-process nearest-centroid model.
package model

import (
	"github.com/ayusman/mudra/internal/feature"
)

// ManifestFile is the name of the manifest inside a model directory.
const ManifestFile = "model.json"

// Manifest describes an installed model and the input it expects.
type Manifest struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Executable  string         `json:"executable"`
	Args        []string       `json:"args,omitempty"`
	Layout      feature.Layout `json:"layout"`
	// Window is the number of frames per prediction; 0 for static models.
	Window  int `json:"window"`
	Classes int `json:"classes"`
}

// Shape returns the input shape described by the manifest.
func (m Manifest) Shape() Shape {
	return Shape{Window: m.Window, Features: m.Layout.Size(), Classes: m.Classes}
}

// Shape is a classifier's input shape.
type Shape struct {
	Window   int `json:"window"`
	Features int `json:"features"`
	Classes  int `json:"classes"`
}

// Static reports whether the classifier takes a single vector.
func (s Shape) Static() bool {
	return s.Window == 0
}

// Rows is the number of input rows per prediction.
func (s Shape) Rows() int {
	if s.Window == 0 {
		return 1
	}
	return s.Window
}

// Request is one prediction request line.
type Request struct {
	Input [][]float64 `json:"input"`
}

// Response is one prediction response line.
type Response struct {
	Probabilities []float64 `json:"probabilities,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Model is a discovered model with its manifest and location.
type Model struct {
	Manifest   Manifest
	Path       string
	Executable string
}
