// Package artifacts stores and loads the trained preprocessor and classifier
// artifacts a prediction service runs with.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role is the part an artifact plays in the inference pipeline
type Role string

const (
	RolePreprocessor Role = "preprocessor"
	RoleClassifier   Role = "classifier"
)

// Roles lists every role a complete model needs
func Roles() []Role {
	return []Role{RolePreprocessor, RoleClassifier}
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RolePreprocessor || r == RoleClassifier
}

// ErrNotFound is returned when no active artifact exists for a model and role
var ErrNotFound = errors.New("artifact not found")

// Artifact is one persisted, versioned model artifact.
// Payload holds the kind-specific document.
type Artifact struct {
	ID              string          `json:"id,omitempty"`
	Model           string          `json:"model"`
	Role            Role            `json:"role"`
	Kind            string          `json:"kind"`
	Version         string          `json:"version"`
	FeatureContract string          `json:"feature_contract,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// validate checks the metadata every store requires
func (a *Artifact) validate() error {
	if a.Model == "" {
		return fmt.Errorf("artifact model is required")
	}
	if !a.Role.Valid() {
		return fmt.Errorf("artifact role %q is invalid", a.Role)
	}
	if a.Kind == "" {
		return fmt.Errorf("artifact kind is required")
	}
	if a.Version == "" {
		return fmt.Errorf("artifact version is required")
	}
	if len(a.Payload) == 0 {
		return fmt.Errorf("artifact payload is required")
	}
	return nil
}

// prepare fills in the identity fields of a newly added artifact
func (a *Artifact) prepare() {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Active = true
}

// Store manages artifact persistence and retrieval
type Store interface {
	// Add stores a new artifact and makes it the active one for its model and role
	Add(a *Artifact) error

	// Get returns the active artifact for model and role
	Get(model string, role Role) (*Artifact, error)

	// List returns all artifacts of a model, oldest first
	List(model string) ([]*Artifact, error)
}

// MemoryStore implements Store using an in-memory map.
// Safe for concurrent use.
type MemoryStore struct {
	artifacts map[string][]*Artifact
	mu        sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string][]*Artifact),
	}
}

// Add stores a copy of a and deactivates the previous artifact for the same model and role
func (s *MemoryStore) Add(a *Artifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	a.prepare()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.artifacts[a.Model] {
		if existing.ID == a.ID {
			return fmt.Errorf("artifact with ID %s already exists", a.ID)
		}
	}
	for _, existing := range s.artifacts[a.Model] {
		if existing.Role == a.Role {
			existing.Active = false
		}
	}

	stored := *a
	s.artifacts[a.Model] = append(s.artifacts[a.Model], &stored)
	return nil
}

// Get returns a copy of the active artifact for model and role
func (s *MemoryStore) Get(model string, role Role) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.artifacts[model] {
		if a.Role == role && a.Active {
			found := *a
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrNotFound, model, role)
}

// List returns copies of every artifact stored for model
func (s *MemoryStore) List(model string) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Artifact, 0, len(s.artifacts[model]))
	for _, a := range s.artifacts[model] {
		c := *a
		list = append(list, &c)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
