// Package viewstore persists view definitions in a YAML file.
package viewstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vegasq/objql/query"
)

// document is the file layout
type document struct {
	Views []query.ViewDefinition `yaml:"views"`
}

// FileStore is a query.ViewStore backed by one YAML file. A missing file
// holds no views.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// New returns a store reading and writing path
func New(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the store's file
func (s *FileStore) Path() string { return s.path }

// LoadViews reads all view definitions
func (s *FileStore) LoadViews(ctx context.Context) ([]query.ViewDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read view store: %w", err)
	}

	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil && len(bytes.TrimSpace(data)) > 0 {
		return nil, fmt.Errorf("failed to parse view store %s: %w", s.path, err)
	}
	for i, v := range doc.Views {
		if v.Name == "" || v.Definition == "" {
			return nil, fmt.Errorf("view store %s: entry %d needs a name and a definition", s.path, i)
		}
	}
	return doc.Views, nil
}

// SaveViews replaces the file's contents with views. The file is written
// to a temporary sibling first and renamed into place.
func (s *FileStore) SaveViews(ctx context.Context, views []query.ViewDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(document{Views: views})
	if err != nil {
		return fmt.Errorf("failed to encode views: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create view store directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".views-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write view store: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write view store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write view store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace view store: %w", err)
	}
	return nil
}
