package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wesm/jira-issue-digest/internal/models"
)

// ErrNoSnapshot is returned by Load when no snapshot has been written yet
var ErrNoSnapshot = errors.New("snapshot not found, run fetch first")

// Store persists the fetched search result as a single JSON file
type Store struct {
	path string
}

// New creates a store backed by the file at path
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("snapshot path is empty")
	}
	return &Store{path: path}, nil
}

// Path returns the snapshot file location
func (s *Store) Path() string {
	return s.path
}

// Save writes the search result, replacing any previous snapshot atomically
func (s *Store) Save(result *models.SearchResult) error {
	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot back into a search result
func (s *Store) Load() (*models.SearchResult, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}

	var result models.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", s.path, err)
	}
	return &result, nil
}

// LoadRaw reads the snapshot as an untyped JSON mapping
func (s *Store) LoadRaw() (map[string]any, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", s.path, err)
	}
	return raw, nil
}

func (s *Store) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}
