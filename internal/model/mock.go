package model

import (
	"context"
	"sync"
)

// MockClassifier returns canned probabilities and records its inputs.
type MockClassifier struct {
	shape  Shape
	probs  []float64
	err    error
	inputs [][][]float64
	closed bool
	mu     sync.Mutex
}

// NewMockClassifier creates a MockClassifier with the given shape. It
// returns a uniform distribution until SetProbabilities is called.
func NewMockClassifier(shape Shape) *MockClassifier {
	probs := make([]float64, shape.Classes)
	for i := range probs {
		probs[i] = 1 / float64(shape.Classes)
	}
	return &MockClassifier{shape: shape, probs: probs}
}

// SetProbabilities sets the output of Predict.
func (m *MockClassifier) SetProbabilities(p []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probs = p
}

// SetError makes Predict fail with err.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockClassifier) Predict(ctx context.Context, input [][]float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := CheckInput(m.shape, input); err != nil {
		return nil, err
	}

	cp := make([][]float64, len(input))
	for i, row := range input {
		cp[i] = append([]float64(nil), row...)
	}
	m.inputs = append(m.inputs, cp)

	if m.err != nil {
		return nil, m.err
	}
	return append([]float64(nil), m.probs...), nil
}

func (m *MockClassifier) Shape() Shape { return m.shape }

func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Inputs returns every input passed to Predict, in order.
func (m *MockClassifier) Inputs() [][][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs
}

// Closed reports whether Close has been called.
func (m *MockClassifier) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
