package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
)

const activationColumns = `project_id, memory_id, layer, activation_level, hop_distance,
	source_memory_id, source_layer, updated_at`

type ActivationStore struct {
	db *DB
}

func NewActivationStore(db *DB) *ActivationStore {
	return &ActivationStore{db: db}
}

func scanActivation(row rowScanner) (*domain.ActivationState, error) {
	var a domain.ActivationState
	var updatedAt int64
	err := row.Scan(&a.ProjectID, &a.Node.MemoryID, &a.Node.Layer, &a.Level, &a.HopDistance,
		&a.Source.MemoryID, &a.Source.Layer, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.UpdatedAt = fromNanos(updatedAt)
	return &a, nil
}

func (s *ActivationStore) UpsertActivations(ctx context.Context, projectID domain.ProjectID, states []domain.ActivationState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin upsert activations", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO activation_states (`+activationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, memory_id, layer) DO UPDATE SET
		     activation_level = excluded.activation_level,
		     hop_distance = excluded.hop_distance,
		     source_memory_id = excluded.source_memory_id,
		     source_layer = excluded.source_layer,
		     updated_at = excluded.updated_at`)
	if err != nil {
		return storageErr("prepare upsert activations", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range states {
		updatedAt := a.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			string(projectID), a.Node.MemoryID, string(a.Node.Layer), a.Level, a.HopDistance,
			a.Source.MemoryID, string(a.Source.Layer), toNanos(updatedAt),
		); err != nil {
			return storageErr("upsert activation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit activations", err)
	}
	return nil
}

func (s *ActivationStore) GetActivation(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (*domain.ActivationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+activationColumns+` FROM activation_states
		 WHERE project_id = ? AND memory_id = ? AND layer = ?`,
		string(projectID), node.MemoryID, string(node.Layer))
	a, err := scanActivation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get activation", err)
	}
	return a, nil
}

func (s *ActivationStore) TopActivations(ctx context.Context, projectID domain.ProjectID, limit int) ([]domain.ActivationState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+activationColumns+` FROM activation_states
		 WHERE project_id = ?
		 ORDER BY activation_level DESC, layer, memory_id
		 LIMIT ?`,
		string(projectID), limit)
	if err != nil {
		return nil, storageErr("top activations", err)
	}
	defer rows.Close()

	var states []domain.ActivationState
	for rows.Next() {
		a, err := scanActivation(rows)
		if err != nil {
			return nil, storageErr("scan activation", err)
		}
		states = append(states, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("top activations", err)
	}
	return states, nil
}

func (s *ActivationStore) DecayActivations(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE activation_states SET activation_level = MAX(0.0, activation_level - ?)
		 WHERE project_id = ? AND activation_level > 0`,
		rate, string(projectID))
	return rowsAffected("decay activations", res, err)
}

func (s *ActivationStore) ClearActivations(ctx context.Context, projectID domain.ProjectID) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activation_states WHERE project_id = ?`, string(projectID))
	return rowsAffected("clear activations", res, err)
}

var _ domain.ActivationStore = (*ActivationStore)(nil)
