package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
	"github.com/ayusman/mudra/internal/npy"
	"gonum.org/v1/gonum/floats"
)

// DefaultTemperature scales centroid distances before the softmax.
const DefaultTemperature = 0.05

// CentroidClassifier is a nearest-centroid model. A sample, whether one
// vector or a window of frames, is reduced to its mean frame; the
// probability of each class is a softmax over negative distances to the
// class centroids.
type CentroidClassifier struct {
	Layout      feature.Layout `json:"layout"`
	Window      int            `json:"window"`
	Labels      []string       `json:"labels"`
	Centroids   [][]float64    `json:"centroids"`
	Temperature float64        `json:"temperature"`
}

// FitCentroids computes one centroid per label from the feature files in
// dir/<label>/, normally the train split of a feature tree. The label
// order is kept, so it must be the order of the label manifest.
func FitCentroids(dir string, labels []string, layout feature.Layout, window int) (*CentroidClassifier, error) {
	size := layout.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: %d", feature.ErrUnknownLayout, int(layout))
	}

	c := &CentroidClassifier{
		Layout:      layout,
		Window:      window,
		Labels:      append([]string(nil), labels...),
		Temperature: DefaultTemperature,
	}

	for _, label := range labels {
		files, err := dataset.ListFiles(filepath.Join(dir, label), []string{dataset.FeatureExt})
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", label, err)
		}

		sum := make([]float64, size)
		n := 0
		for _, f := range files {
			rows, err := npy.ReadAny(f)
			if err != nil {
				return nil, err
			}
			m, err := meanRow(rows, size)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f, err)
			}
			floats.Add(sum, m)
			n++
		}
		if n == 0 {
			return nil, fmt.Errorf("class %s has no feature files", label)
		}

		floats.Scale(1/float64(n), sum)
		c.Centroids = append(c.Centroids, sum)
	}

	return c, nil
}

func meanRow(rows [][]float64, size int) ([]float64, error) {
	if len(rows) == 0 {
		return nil, errors.New("no rows")
	}
	mean := make([]float64, size)
	for _, r := range rows {
		if len(r) != size {
			return nil, fmt.Errorf("%w: %d values, want %d", ErrBadInput, len(r), size)
		}
		floats.Add(mean, r)
	}
	floats.Scale(1/float64(len(rows)), mean)
	return mean, nil
}

// Shape implements Classifier.
func (c *CentroidClassifier) Shape() Shape {
	return Shape{Window: c.Window, Features: c.Layout.Size(), Classes: len(c.Centroids)}
}

// Predict implements Classifier.
func (c *CentroidClassifier) Predict(ctx context.Context, input [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shape := c.Shape()
	if err := CheckInput(shape, input); err != nil {
		return nil, err
	}

	x, err := meanRow(input, shape.Features)
	if err != nil {
		return nil, err
	}

	t := c.Temperature
	if t <= 0 {
		t = DefaultTemperature
	}

	logits := make([]float64, len(c.Centroids))
	for i, centroid := range c.Centroids {
		logits[i] = -floats.Distance(x, centroid, 2) / t
	}

	lse := floats.LogSumExp(logits)
	probs := make([]float64, len(logits))
	for i, l := range logits {
		probs[i] = math.Exp(l - lse)
	}
	return probs, nil
}

// Close implements Classifier.
func (c *CentroidClassifier) Close() error { return nil }

// Save writes the centroids as JSON.
func (c *CentroidClassifier) Save(path string) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadCentroids reads centroids written by Save.
func LoadCentroids(path string) (*CentroidClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c CentroidClassifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse centroids %s: %w", path, err)
	}
	if len(c.Centroids) == 0 || len(c.Centroids) != len(c.Labels) {
		return nil, fmt.Errorf("centroids %s: %d centroids for %d labels", path, len(c.Centroids), len(c.Labels))
	}
	for i, centroid := range c.Centroids {
		if len(centroid) != c.Layout.Size() {
			return nil, fmt.Errorf("centroids %s: centroid %d has %d values, want %d", path, i, len(centroid), c.Layout.Size())
		}
	}
	return &c, nil
}

// Manifest returns a model manifest describing c, for installing it as a
// model directory served by the centroid executable.
func (c *CentroidClassifier) Manifest(name, executable string) Manifest {
	return Manifest{
		Name:        name,
		Version:     "1",
		Description: "nearest-centroid classifier",
		Executable:  executable,
		Layout:      c.Layout,
		Window:      c.Window,
		Classes:     len(c.Centroids),
	}
}

// Install writes c as an in-process model named name under dir, so a
// Registry over dir discovers it.
func Install(dir, name string, c *CentroidClassifier) (*Model, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	if err := c.Save(filepath.Join(path, CentroidsFile)); err != nil {
		return nil, fmt.Errorf("save centroids: %w", err)
	}

	manifest := c.Manifest(name, "")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(path, ManifestFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return &Model{Manifest: manifest, Path: path}, nil
}
