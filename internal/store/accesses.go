package store

import (
	"context"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accessColumns = `id, project_id, memory_id, layer, activation_level, accessed_at, learned_at`

type AccessLogStore struct {
	db *pgxpool.Pool
}

func NewAccessLogStore(db *pgxpool.Pool) *AccessLogStore {
	return &AccessLogStore{db: db}
}

func (s *AccessLogStore) AppendAccess(ctx context.Context, e *domain.AccessEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.AccessedAt.IsZero() {
		e.AccessedAt = time.Now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return storageErr("begin append access", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO access_events (id, project_id, memory_id, layer, activation_level, accessed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, string(e.ProjectID), e.Node.MemoryID, string(e.Node.Layer), e.ActivationLevel, e.AccessedAt,
	); err != nil {
		return storageErr("append access", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO hebbian_stats (project_id, total_accesses) VALUES ($1, 1)
		 ON CONFLICT (project_id) DO UPDATE SET total_accesses = hebbian_stats.total_accesses + 1`,
		string(e.ProjectID),
	); err != nil {
		return storageErr("count access", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit access", err)
	}
	return nil
}

func (s *AccessLogStore) ListAccesses(ctx context.Context, projectID domain.ProjectID, from, to time.Time) ([]domain.AccessEvent, error) {
	var toArg *time.Time
	if !to.IsZero() {
		toArg = &to
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+accessColumns+`
		 FROM access_events
		 WHERE project_id = $1 AND accessed_at >= $2
		   AND ($3::timestamptz IS NULL OR accessed_at <= $3)
		 ORDER BY accessed_at, seq`,
		string(projectID), from, toArg)
	if err != nil {
		return nil, storageErr("list accesses", err)
	}
	return scanAccesses(rows, "list accesses")
}

func (s *AccessLogStore) ListUnlearned(ctx context.Context, projectID domain.ProjectID) ([]domain.AccessEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+accessColumns+`
		 FROM access_events
		 WHERE project_id = $1 AND learned_at IS NULL
		 ORDER BY accessed_at, seq`,
		string(projectID))
	if err != nil {
		return nil, storageErr("list unlearned accesses", err)
	}
	return scanAccesses(rows, "list unlearned accesses")
}

func scanAccesses(rows pgx.Rows, op string) ([]domain.AccessEvent, error) {
	defer rows.Close()

	var events []domain.AccessEvent
	for rows.Next() {
		var e domain.AccessEvent
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Node.MemoryID, &e.Node.Layer, &e.ActivationLevel,
			&e.AccessedAt, &e.LearnedAt); err != nil {
			return nil, storageErr("scan access", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return events, nil
}

func (s *AccessLogStore) MarkLearned(ctx context.Context, projectID domain.ProjectID, ids []uuid.UUID, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE access_events SET learned_at = $1
		 WHERE project_id = $2 AND learned_at IS NULL AND id::text = ANY($3::text[])`,
		at, string(projectID), idStrs)
	if err != nil {
		return 0, storageErr("mark accesses learned", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *AccessLogStore) DeleteAccessesBefore(ctx context.Context, projectID domain.ProjectID, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM access_events WHERE project_id = $1 AND accessed_at < $2`,
		string(projectID), cutoff)
	if err != nil {
		return 0, storageErr("delete accesses", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *AccessLogStore) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	return listProjects(ctx, s.db, "list access projects",
		`SELECT DISTINCT project_id FROM access_events ORDER BY project_id`)
}

var _ domain.AccessLogStore = (*AccessLogStore)(nil)
