package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/labels"
	"github.com/ayusman/mudra/internal/model"
	"gocv.io/x/gocv"
)

// ErrLayoutMismatch is returned when the extractor, classifier and label
// manifest disagree on input shape or class count.
var ErrLayoutMismatch = errors.New("layout mismatch")

// Featurizer turns a frame into a feature vector. *feature.Extractor
// implements it.
type Featurizer interface {
	Layout() feature.Layout
	Extract(frame *gocv.Mat) (feature.Vector, error)
}

// Recognizer combines a featurizer, a classifier and a label manifest.
// Static classifiers are evaluated on every frame; windowed classifiers
// once their window is full and then on every frame.
type Recognizer struct {
	fz        Featurizer
	clf       model.Classifier
	manifest  *labels.Manifest
	threshold float64
	window    *Window
}

// NewRecognizer checks that the pieces fit together before any frame is
// processed.
func NewRecognizer(fz Featurizer, clf model.Classifier, m *labels.Manifest, threshold float64) (*Recognizer, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0,1), got %g", threshold)
	}

	shape := clf.Shape()
	layout := fz.Layout()
	if shape.Features != layout.Size() {
		return nil, fmt.Errorf("%w: classifier takes %d features, extractor produces %d (%s)",
			ErrLayoutMismatch, shape.Features, layout.Size(), layout)
	}
	if m.Layout != layout {
		return nil, fmt.Errorf("%w: manifest layout %s, extractor layout %s", ErrLayoutMismatch, m.Layout, layout)
	}
	if shape.Classes != m.Len() {
		return nil, fmt.Errorf("%w: classifier has %d classes, manifest has %d labels",
			ErrLayoutMismatch, shape.Classes, m.Len())
	}

	return &Recognizer{
		fz:        fz,
		clf:       clf,
		manifest:  m,
		threshold: threshold,
		window:    NewWindow(shape.Rows()),
	}, nil
}

// Step featurizes frame and evaluates it. ready is false while the window
// is still filling.
func (r *Recognizer) Step(ctx context.Context, frame *gocv.Mat) (p Prediction, ready bool, err error) {
	v, err := r.fz.Extract(frame)
	if err != nil {
		return Prediction{}, false, err
	}
	return r.StepVector(ctx, v)
}

// StepVector evaluates an already extracted vector.
func (r *Recognizer) StepVector(ctx context.Context, v feature.Vector) (Prediction, bool, error) {
	if len(v) != r.fz.Layout().Size() {
		return Prediction{}, false, fmt.Errorf("%w: vector has %d values", ErrLayoutMismatch, len(v))
	}

	r.window.Push(v)
	if !r.window.Full() {
		return Prediction{Index: -1}, false, nil
	}

	probs, err := r.clf.Predict(ctx, r.window.Snapshot())
	if err != nil {
		return Prediction{}, false, fmt.Errorf("predict: %w", err)
	}
	return Gate(probs, r.threshold, r.manifest), true, nil
}

// Reset clears the window, for example after a pause in capture.
func (r *Recognizer) Reset() {
	r.window.Reset()
}

// Window exposes the rolling window.
func (r *Recognizer) Window() *Window {
	return r.window
}
