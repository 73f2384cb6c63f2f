package artifacts

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func testArtifact(model string, role Role, version string) *Artifact {
	kind := KindColumnTransformer
	payload := `{"steps":[{"type":"passthrough","columns":["Age"]}]}`
	if role == RoleClassifier {
		kind = KindCELScorer
		payload = `{"n_features":1,"expression":"x[0]"}`
	}
	return &Artifact{
		Model:   model,
		Role:    role,
		Kind:    kind,
		Version: version,
		Payload: json.RawMessage(payload),
	}
}

// TestStoreInterfaceImplementations verifies every store satisfies Store
func TestStoreInterfaceImplementations(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
	var _ Store = (*FileStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

// TestMemoryStoreAddGet verifies an added artifact becomes the active one
func TestMemoryStoreAddGet(t *testing.T) {
	store := NewMemoryStore()

	a := testArtifact("churn", RolePreprocessor, "1")
	if err := store.Add(a); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if a.ID == "" {
		t.Error("Add() should assign an ID")
	}
	if a.CreatedAt.IsZero() {
		t.Error("Add() should set CreatedAt")
	}

	got, err := store.Get("churn", RolePreprocessor)
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}
	if got.ID != a.ID || got.Version != "1" || !got.Active {
		t.Errorf("Get() = %+v, want active version 1 with ID %s", got, a.ID)
	}
}

// TestMemoryStoreReplacesActive verifies a new version deactivates the old one
func TestMemoryStoreReplacesActive(t *testing.T) {
	store := NewMemoryStore()

	first := testArtifact("churn", RoleClassifier, "1")
	first.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := testArtifact("churn", RoleClassifier, "2")
	second.CreatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	other := testArtifact("churn", RolePreprocessor, "1")

	for _, a := range []*Artifact{first, second, other} {
		if err := store.Add(a); err != nil {
			t.Fatalf("Add(%s %s) failed: %v", a.Role, a.Version, err)
		}
	}

	got, err := store.Get("churn", RoleClassifier)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Version != "2" {
		t.Errorf("active classifier version = %s, want 2", got.Version)
	}

	pre, err := store.Get("churn", RolePreprocessor)
	if err != nil {
		t.Fatalf("Get(preprocessor) failed: %v", err)
	}
	if !pre.Active {
		t.Error("adding a classifier must not deactivate the preprocessor")
	}

	list, err := store.List("churn")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List() returned %d artifacts, want 3", len(list))
	}
	active := 0
	for _, a := range list {
		if a.Role == RoleClassifier && a.Active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("found %d active classifiers, want 1", active)
	}
	if list[0].Version != "1" || list[0].Role != RoleClassifier {
		t.Errorf("List() should be ordered oldest first, got %s %s first", list[0].Role, list[0].Version)
	}
}

// TestMemoryStoreDuplicateID verifies re-adding an ID fails
func TestMemoryStoreDuplicateID(t *testing.T) {
	store := NewMemoryStore()

	a := testArtifact("churn", RoleClassifier, "1")
	a.ID = "fixed"
	if err := store.Add(a); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}

	b := testArtifact("churn", RoleClassifier, "2")
	b.ID = "fixed"
	if err := store.Add(b); err == nil {
		t.Error("Add() with duplicate ID should fail")
	}
}

// TestMemoryStoreNotFound verifies missing artifacts return ErrNotFound
func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get("missing", RoleClassifier)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

// TestMemoryStoreReturnsCopies verifies callers cannot mutate stored artifacts
func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Add(testArtifact("churn", RoleClassifier, "1")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, _ := store.Get("churn", RoleClassifier)
	got.Version = "changed"
	got.Active = false

	again, err := store.Get("churn", RoleClassifier)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if again.Version != "1" {
		t.Errorf("stored version = %s, want 1", again.Version)
	}
}

// TestAddRejectsIncompleteArtifacts verifies metadata validation
func TestAddRejectsIncompleteArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"no model", func(a *Artifact) { a.Model = "" }},
		{"bad role", func(a *Artifact) { a.Role = "scorer" }},
		{"no kind", func(a *Artifact) { a.Kind = "" }},
		{"no version", func(a *Artifact) { a.Version = "" }},
		{"no payload", func(a *Artifact) { a.Payload = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testArtifact("churn", RoleClassifier, "1")
			tt.mutate(a)
			if err := NewMemoryStore().Add(a); err == nil {
				t.Error("Add() should fail")
			}
			if err := NewFileStore(t.TempDir()).Add(a); err == nil {
				t.Error("FileStore.Add() should fail")
			}
		})
	}
}

// TestMemoryStoreConcurrentAccess verifies the store is safe for concurrent use
func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Add(testArtifact("churn", RoleClassifier, "0")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Add(testArtifact("churn", RoleClassifier, "n"))
		}()
		go func() {
			defer wg.Done()
			if _, err := store.Get("churn", RoleClassifier); err != nil {
				t.Errorf("Get() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	list, _ := store.List("churn")
	if len(list) != 21 {
		t.Errorf("List() returned %d artifacts, want 21", len(list))
	}
}

// TestFileStoreRoundTrip verifies artifacts written to disk can be read back
func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	a := testArtifact("churn", RolePreprocessor, "3")
	a.FeatureContract = "v1"
	if err := store.Add(a); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := store.Get("churn", RolePreprocessor)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ID != a.ID || got.Version != "3" || got.FeatureContract != "v1" || got.Kind != KindColumnTransformer {
		t.Errorf("Get() = %+v, want the written artifact", got)
	}
	if !json.Valid(got.Payload) {
		t.Errorf("payload is not valid JSON: %s", got.Payload)
	}

	list, err := store.List("churn")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() returned %d artifacts, want 1", len(list))
	}

	models, err := store.Models()
	if err != nil {
		t.Fatalf("Models() failed: %v", err)
	}
	if len(models) != 1 || models[0] != "churn" {
		t.Errorf("Models() = %v, want [churn]", models)
	}
}

// TestFileStoreNotFound verifies a missing file maps to ErrNotFound
func TestFileStoreNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Get("churn", RoleClassifier)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

// TestFileStoreRejectsPathNames verifies model names cannot escape the root
func TestFileStoreRejectsPathNames(t *testing.T) {
	store := NewFileStore(t.TempDir())

	for _, name := range []string{"..", "a/b", `a\b`, ""} {
		if _, err := store.Get(name, RoleClassifier); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want invalid name error", name, err)
		}
	}
}
