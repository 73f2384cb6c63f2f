package artifacts

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by the model_artifacts table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed Store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a and deactivates the previous active artifact in one transaction
func (s *PostgresStore) Add(a *Artifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	a.prepare()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM model_artifacts WHERE id = $1)
	`, a.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check artifact existence: %w", err)
	}
	if exists {
		return fmt.Errorf("artifact with ID %s already exists", a.ID)
	}

	_, err = tx.Exec(`
		UPDATE model_artifacts
		SET active = false
		WHERE model = $1 AND role = $2 AND active = true
	`, a.Model, string(a.Role))
	if err != nil {
		return fmt.Errorf("failed to deactivate previous artifact: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO model_artifacts (id, model, role, kind, version, feature_contract, payload, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
	`, a.ID, a.Model, string(a.Role), a.Kind, a.Version, a.FeatureContract, string(a.Payload), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artifact: %w", err)
	}
	return nil
}

// Get retrieves the active artifact for model and role
func (s *PostgresStore) Get(model string, role Role) (*Artifact, error) {
	row := s.db.QueryRow(`
		SELECT id, model, role, kind, version, feature_contract, payload, active, created_at
		FROM model_artifacts
		WHERE model = $1 AND role = $2 AND active = true
	`, model, string(role))

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, model, role)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

// List returns every artifact version stored for model
func (s *PostgresStore) List(model string) ([]*Artifact, error) {
	rows, err := s.db.Query(`
		SELECT id, model, role, kind, version, feature_contract, payload, active, created_at
		FROM model_artifacts
		WHERE model = $1
		ORDER BY created_at ASC
	`, model)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var list []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		list = append(list, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}
	return list, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var a Artifact
	var role string
	var payload []byte
	if err := row.Scan(&a.ID, &a.Model, &role, &a.Kind, &a.Version, &a.FeatureContract,
		&payload, &a.Active, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Role = Role(role)
	a.Payload = payload
	return &a, nil
}
