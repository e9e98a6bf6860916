package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
)

const accessColumns = `id, project_id, memory_id, layer, activation_level, accessed_at, learned_at`

type AccessLogStore struct {
	db *DB
}

func NewAccessLogStore(db *DB) *AccessLogStore {
	return &AccessLogStore{db: db}
}

func (s *AccessLogStore) AppendAccess(ctx context.Context, e *domain.AccessEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.AccessedAt.IsZero() {
		e.AccessedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin append access", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO access_events (id, project_id, memory_id, layer, activation_level, accessed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.ProjectID), e.Node.MemoryID, string(e.Node.Layer), e.ActivationLevel, toNanos(e.AccessedAt),
	); err != nil {
		return storageErr("append access", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO hebbian_stats (project_id, total_accesses) VALUES (?, 1)
		 ON CONFLICT (project_id) DO UPDATE SET total_accesses = total_accesses + 1`,
		string(e.ProjectID),
	); err != nil {
		return storageErr("count access", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit access", err)
	}
	return nil
}

func (s *AccessLogStore) ListAccesses(ctx context.Context, projectID domain.ProjectID, from, to time.Time) ([]domain.AccessEvent, error) {
	var fromArg int64
	if !from.IsZero() {
		fromArg = toNanos(from)
	}
	var toArg any
	if !to.IsZero() {
		toArg = toNanos(to)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accessColumns+` FROM access_events
		 WHERE project_id = ? AND accessed_at >= ? AND (? IS NULL OR accessed_at <= ?)
		 ORDER BY accessed_at, seq`,
		string(projectID), fromArg, toArg, toArg)
	if err != nil {
		return nil, storageErr("list accesses", err)
	}
	return scanAccesses(rows, "list accesses")
}

func (s *AccessLogStore) ListUnlearned(ctx context.Context, projectID domain.ProjectID) ([]domain.AccessEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accessColumns+` FROM access_events
		 WHERE project_id = ? AND learned_at IS NULL
		 ORDER BY accessed_at, seq`,
		string(projectID))
	if err != nil {
		return nil, storageErr("list unlearned accesses", err)
	}
	return scanAccesses(rows, "list unlearned accesses")
}

func scanAccesses(rows *sql.Rows, op string) ([]domain.AccessEvent, error) {
	defer rows.Close()

	var events []domain.AccessEvent
	for rows.Next() {
		var e domain.AccessEvent
		var accessedAt int64
		var learnedAt sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Node.MemoryID, &e.Node.Layer, &e.ActivationLevel,
			&accessedAt, &learnedAt); err != nil {
			return nil, storageErr("scan access", err)
		}
		e.AccessedAt = fromNanos(accessedAt)
		if learnedAt.Valid {
			t := fromNanos(learnedAt.Int64)
			e.LearnedAt = &t
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
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE access_events SET learned_at = ?
		 WHERE project_id = ? AND learned_at IS NULL
		   AND id IN (SELECT value FROM json_each(?))`,
		toNanos(at), string(projectID), string(idsJSON))
	return rowsAffected("mark accesses learned", res, err)
}

func (s *AccessLogStore) DeleteAccessesBefore(ctx context.Context, projectID domain.ProjectID, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM access_events WHERE project_id = ? AND accessed_at < ?`,
		string(projectID), toNanos(cutoff))
	return rowsAffected("delete accesses", res, err)
}

func (s *AccessLogStore) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	return listProjects(ctx, s.db, "list access projects",
		`SELECT DISTINCT project_id FROM access_events ORDER BY project_id`)
}

var _ domain.AccessLogStore = (*AccessLogStore)(nil)
