package inference

import (
	"github.com/ayusman/mudra/internal/labels"
	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the minimum confidence for an accepted prediction.
const DefaultThreshold = 0.8

// Unrecognized is the text shown when no sign is accepted.
const Unrecognized = "..."

// Prediction is the gated result for one evaluation.
type Prediction struct {
	Label         string    `json:"label,omitempty"`
	Index         int       `json:"index"`
	Confidence    float64   `json:"confidence"`
	Recognized    bool      `json:"recognized"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// Text returns the label of a recognized prediction, or Unrecognized.
func (p Prediction) Text() string {
	if !p.Recognized {
		return Unrecognized
	}
	return p.Label
}

// Gate accepts the most probable class only when its probability is
// strictly greater than threshold.
func Gate(probs []float64, threshold float64, m *labels.Manifest) Prediction {
	if len(probs) == 0 {
		return Prediction{Index: -1}
	}

	idx := floats.MaxIdx(probs)
	p := Prediction{
		Index:         idx,
		Confidence:    probs[idx],
		Probabilities: probs,
	}

	if probs[idx] > threshold {
		if label, err := m.Label(idx); err == nil {
			p.Label = label
			p.Recognized = true
		}
	}
	return p
}
