package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore implements Store on a directory tree laid out as
// <dir>/<model>/<role>.json. Each file holds one Artifact document, so a
// directory only keeps the active artifact of each role.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(model string, role Role) (string, error) {
	if model == "" || strings.ContainsAny(model, `/\`) || model == "." || model == ".." {
		return "", fmt.Errorf("invalid model name %q", model)
	}
	return filepath.Join(s.dir, model, string(role)+".json"), nil
}

// Add writes a to disk, replacing the current artifact for its model and role
func (s *FileStore) Add(a *Artifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	p, err := s.path(a.Model, a.Role)
	if err != nil {
		return err
	}
	a.prepare()

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Get reads the artifact file for model and role
func (s *FileStore) Get(model string, role Role) (*Artifact, error) {
	p, err := s.path(model, role)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, model, role)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p, err)
	}

	// The file location is authoritative
	a.Model = model
	a.Role = role
	a.Active = true
	return &a, nil
}

// List returns the artifacts present for model
func (s *FileStore) List(model string) ([]*Artifact, error) {
	var list []*Artifact
	for _, role := range Roles() {
		a, err := s.Get(model, role)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, nil
}

// Models returns the model directories present under the store root
func (s *FileStore) Models() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	var models []string
	for _, e := range entries {
		if e.IsDir() {
			models = append(models, e.Name())
		}
	}
	return models, nil
}
