package model

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Registry discovers models installed as subdirectories of a directory,
// each holding a model.json manifest.
type Registry struct {
	dir    string
	models map[string]*Model
	mu     sync.RWMutex
}

// NewRegistry creates a Registry over dir. Call Discover to load it.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		models: make(map[string]*Model),
	}
}

// Discover rescans the directory. A missing directory yields no models.
// Subdirectories without a readable, valid manifest are skipped.
func (r *Registry) Discover() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*Model)

	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(path, ManifestFile))
		if err != nil {
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			log.Printf("skipping model %s: %v", entry.Name(), err)
			continue
		}
		if manifest.Name == "" {
			manifest.Name = entry.Name()
		}

		r.models[manifest.Name] = &Model{
			Manifest:   manifest,
			Path:       path,
			Executable: filepath.Join(path, manifest.Executable),
		}
	}

	return nil
}

// Get returns a model by name, or ErrModelNotFound.
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, ErrModelNotFound
	}
	return m, nil
}

// List returns every discovered model sorted by name.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Manifest.Name < models[j].Manifest.Name
	})
	return models
}

// Dir returns the scanned directory.
func (r *Registry) Dir() string {
	return r.dir
}
