package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned when a requested model is not installed.
	ErrModelNotFound = errors.New("model not found")

	// ErrBadInput is returned when an input window does not match the shape.
	ErrBadInput = errors.New("input does not match model shape")

	// ErrClosed is returned by classifiers used after Close.
	ErrClosed = errors.New("classifier closed")
)

// Classifier turns an input window into class probabilities.
type Classifier interface {
	// Predict returns one probability per class. Static classifiers take
	// a single row.
	Predict(ctx context.Context, input [][]float64) ([]float64, error)

	// Shape reports the expected input and output sizes.
	Shape() Shape

	// Close releases the classifier.
	Close() error
}

// CheckInput verifies input against shape.
func CheckInput(shape Shape, input [][]float64) error {
	if len(input) != shape.Rows() {
		return fmt.Errorf("%w: %d rows, want %d", ErrBadInput, len(input), shape.Rows())
	}
	for i, row := range input {
		if len(row) != shape.Features {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrBadInput, i, len(row), shape.Features)
		}
	}
	return nil
}
