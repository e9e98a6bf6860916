package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
)

const linkColumns = `id, project_id, from_id, from_layer, to_id, to_layer, link_type,
	strength, co_occurrence_count, created_at, last_strengthened_at`

type LinkStore struct {
	db *DB
}

func NewLinkStore(db *DB) *LinkStore {
	return &LinkStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var l domain.Link
	var createdAt, strengthenedAt int64
	err := row.Scan(&l.ID, &l.ProjectID, &l.From.MemoryID, &l.From.Layer, &l.To.MemoryID, &l.To.Layer,
		&l.LinkType, &l.Strength, &l.CoOccurrenceCount, &createdAt, &strengthenedAt)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = fromNanos(createdAt)
	l.LastStrengthenedAt = fromNanos(strengthenedAt)
	return &l, nil
}

func (s *LinkStore) UpsertLink(ctx context.Context, l *domain.Link) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	now := toNanos(time.Now())

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO association_links (`+linkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (project_id, from_id, from_layer, to_id, to_layer) DO UPDATE
		 SET co_occurrence_count = co_occurrence_count + 1
		 RETURNING `+linkColumns,
		l.ID, string(l.ProjectID), l.From.MemoryID, string(l.From.Layer), l.To.MemoryID, string(l.To.Layer),
		string(l.LinkType), l.Strength, now, now,
	)
	stored, err := scanLink(row)
	if err != nil {
		return storageErr("upsert link", err)
	}
	*l = *stored
	return nil
}

func (s *LinkStore) ReinforceLink(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef, linkType domain.LinkType, rate float64) (*domain.Link, bool, error) {
	id := uuid.New()
	now := toNanos(time.Now())

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO association_links (`+linkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (project_id, from_id, from_layer, to_id, to_layer) DO UPDATE
		 SET strength = MIN(1.0, strength + excluded.strength * (1.0 - strength)),
		     co_occurrence_count = co_occurrence_count + 1,
		     last_strengthened_at = excluded.last_strengthened_at
		 RETURNING `+linkColumns,
		id, string(projectID), from.MemoryID, string(from.Layer), to.MemoryID, string(to.Layer),
		string(linkType), rate, now, now,
	)
	stored, err := scanLink(row)
	if err != nil {
		return nil, false, storageErr("reinforce link", err)
	}
	return stored, stored.ID == id, nil
}

func (s *LinkStore) GetLink(ctx context.Context, id uuid.UUID) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM association_links WHERE id = ?`, id)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get link", err)
	}
	return l, nil
}

func (s *LinkStore) GetLinkBetween(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef) (*domain.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM association_links
		 WHERE project_id = ? AND from_id = ? AND from_layer = ? AND to_id = ? AND to_layer = ?`,
		string(projectID), from.MemoryID, string(from.Layer), to.MemoryID, string(to.Layer))
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get link between", err)
	}
	return l, nil
}

func (s *LinkStore) AdjustStrength(ctx context.Context, id uuid.UUID, delta float64) (float64, error) {
	now := toNanos(time.Now())
	var strength float64
	err := s.db.QueryRowContext(ctx,
		`UPDATE association_links
		 SET strength = MAX(0.0, MIN(1.0, strength + ?)),
		     last_strengthened_at = CASE WHEN ? > 0 THEN ? ELSE last_strengthened_at END
		 WHERE id = ?
		 RETURNING strength`,
		delta, delta, now, id,
	).Scan(&strength)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, storageErr("adjust strength", err)
	}
	return strength, nil
}

func (s *LinkStore) GetNeighbors(ctx context.Context, projectID domain.ProjectID, nodes []domain.NodeRef, minStrength float64) ([]domain.Link, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`WITH nodes(memory_id, layer) AS (
		     SELECT json_extract(value, '$.memory_id'), json_extract(value, '$.layer')
		     FROM json_each(?)
		 )
		 SELECT `+linkColumns+` FROM association_links l
		 WHERE l.project_id = ? AND l.strength >= ?
		   AND (EXISTS (SELECT 1 FROM nodes n WHERE n.memory_id = l.from_id AND n.layer = l.from_layer)
		     OR EXISTS (SELECT 1 FROM nodes n WHERE n.memory_id = l.to_id AND n.layer = l.to_layer))
		 ORDER BY l.strength DESC, l.id`,
		string(nodesJSON), string(projectID), minStrength,
	)
	if err != nil {
		return nil, storageErr("get neighbors", err)
	}
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, storageErr("scan link", err)
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get neighbors", err)
	}
	return links, nil
}

func (s *LinkStore) CountLinks(ctx context.Context, projectID domain.ProjectID, minStrength float64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM association_links WHERE project_id = ? AND strength >= ?`,
		string(projectID), minStrength,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count links", err)
	}
	return n, nil
}

func (s *LinkStore) PruneLinks(ctx context.Context, projectID domain.ProjectID, threshold float64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM association_links WHERE project_id = ? AND strength <= ?`,
		string(projectID), threshold,
	)
	return rowsAffected("prune links", res, err)
}

func (s *LinkStore) DecayLinks(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE association_links SET strength = MAX(0.0, strength - ?)
		 WHERE project_id = ? AND strength > 0`,
		rate, string(projectID),
	)
	return rowsAffected("decay links", res, err)
}

func (s *LinkStore) AverageStrength(ctx context.Context, projectID domain.ProjectID) (float64, error) {
	var avg float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(strength), 0) FROM association_links WHERE project_id = ?`,
		string(projectID),
	).Scan(&avg)
	if err != nil {
		return 0, storageErr("average strength", err)
	}
	return avg, nil
}

func (s *LinkStore) DeleteLinksForNode(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM association_links
		 WHERE project_id = ?
		   AND ((from_id = ? AND from_layer = ?) OR (to_id = ? AND to_layer = ?))`,
		string(projectID), node.MemoryID, string(node.Layer), node.MemoryID, string(node.Layer),
	)
	return rowsAffected("delete links for node", res, err)
}

func (s *LinkStore) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	return listProjects(ctx, s.db, "list link projects",
		`SELECT DISTINCT project_id FROM association_links ORDER BY project_id`)
}

func rowsAffected(op string, res sql.Result, err error) (int, error) {
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(op, err)
	}
	return int(n), nil
}

func listProjects(ctx context.Context, db *DB, op, query string) ([]domain.ProjectID, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var projects []domain.ProjectID
	for rows.Next() {
		var p domain.ProjectID
		if err := rows.Scan(&p); err != nil {
			return nil, storageErr(op, err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return projects, nil
}

var _ domain.LinkStore = (*LinkStore)(nil)
