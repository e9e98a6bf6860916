package store

import (
	"context"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activationColumns = `project_id, memory_id, layer, activation_level, hop_distance,
	source_memory_id, source_layer, updated_at`

type ActivationStore struct {
	db *pgxpool.Pool
}

func NewActivationStore(db *pgxpool.Pool) *ActivationStore {
	return &ActivationStore{db: db}
}

func scanActivation(row pgx.Row) (*domain.ActivationState, error) {
	a := &domain.ActivationState{}
	err := row.Scan(&a.ProjectID, &a.Node.MemoryID, &a.Node.Layer, &a.Level, &a.HopDistance,
		&a.Source.MemoryID, &a.Source.Layer, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpsertActivations writes the whole snapshot as one batch inside a
// transaction so readers never see a half-written propagation.
func (s *ActivationStore) UpsertActivations(ctx context.Context, projectID domain.ProjectID, states []domain.ActivationState) error {
	if len(states) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storageErr("begin upsert activations", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, st := range states {
		batch.Queue(
			`INSERT INTO activation_states (`+activationColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 ON CONFLICT (project_id, memory_id, layer) DO UPDATE
			 SET activation_level = EXCLUDED.activation_level,
			     hop_distance = EXCLUDED.hop_distance,
			     source_memory_id = EXCLUDED.source_memory_id,
			     source_layer = EXCLUDED.source_layer,
			     updated_at = EXCLUDED.updated_at`,
			string(projectID), st.Node.MemoryID, string(st.Node.Layer), st.Level, st.HopDistance,
			st.Source.MemoryID, string(st.Source.Layer),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return storageErr("upsert activations", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit activations", err)
	}
	return nil
}

func (s *ActivationStore) GetActivation(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (*domain.ActivationState, error) {
	a, err := scanActivation(s.db.QueryRow(ctx,
		`SELECT `+activationColumns+` FROM activation_states
		 WHERE project_id = $1 AND memory_id = $2 AND layer = $3`,
		string(projectID), node.MemoryID, string(node.Layer)))
	if err != nil {
		return nil, storageErr("get activation", err)
	}
	return a, nil
}

func (s *ActivationStore) TopActivations(ctx context.Context, projectID domain.ProjectID, limit int) ([]domain.ActivationState, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+activationColumns+` FROM activation_states
		 WHERE project_id = $1
		 ORDER BY activation_level DESC, layer, memory_id
		 LIMIT $2`,
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
	tag, err := s.db.Exec(ctx,
		`UPDATE activation_states SET activation_level = GREATEST(0.0, activation_level - $2)
		 WHERE project_id = $1 AND activation_level > 0`,
		string(projectID), rate)
	if err != nil {
		return 0, storageErr("decay activations", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *ActivationStore) ClearActivations(ctx context.Context, projectID domain.ProjectID) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM activation_states WHERE project_id = $1`, string(projectID))
	if err != nil {
		return 0, storageErr("clear activations", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ domain.ActivationStore = (*ActivationStore)(nil)
