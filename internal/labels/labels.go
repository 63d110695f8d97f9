// Package labels persists the ordered class list shared by training and
// inference. A class's index is its position in the manifest, so the
// manifest is written once and loaded verbatim afterwards.
package labels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/feature"
)

// ErrUnknownLabel is returned for labels or indexes not in the manifest.
var ErrUnknownLabel = errors.New("unknown label")

// Manifest is the ordered label list of a trained model.
type Manifest struct {
	Labels    []string       `json:"labels"`
	Layout    feature.Layout `json:"layout"`
	CreatedAt time.Time      `json:"created_at"`
}

// New builds a manifest from labels in the given order.
func New(labels []string, layout feature.Layout) (*Manifest, error) {
	m := &Manifest{
		Labels:    append([]string(nil), labels...),
		Layout:    layout,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromDirectory builds a manifest from the sorted class directories of
// dir, normally the train split of a feature tree.
func FromDirectory(dir string, layout feature.Layout) (*Manifest, error) {
	classes, err := dataset.ListClasses(dir)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return New(classes, layout)
}

// Validate checks for an empty or duplicated label list.
func (m *Manifest) Validate() error {
	if len(m.Labels) == 0 {
		return errors.New("manifest has no labels")
	}
	seen := make(map[string]bool, len(m.Labels))
	for _, l := range m.Labels {
		if l == "" {
			return errors.New("manifest has an empty label")
		}
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	if m.Layout.Size() == 0 {
		return fmt.Errorf("%w: %d", feature.ErrUnknownLayout, int(m.Layout))
	}
	return nil
}

// Load reads a manifest written by Save.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Len returns the number of classes.
func (m *Manifest) Len() int {
	return len(m.Labels)
}

// Index returns the position of label.
func (m *Manifest) Index(label string) (int, error) {
	for i, l := range m.Labels {
		if l == label {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}

// Label returns the label at index i.
func (m *Manifest) Label(i int) (string, error) {
	if i < 0 || i >= len(m.Labels) {
		return "", fmt.Errorf("%w: index %d of %d", ErrUnknownLabel, i, len(m.Labels))
	}
	return m.Labels[i], nil
}
