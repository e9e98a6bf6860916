package store

import (
	"context"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const linkColumns = `id, project_id, from_id, from_layer, to_id, to_layer, link_type,
	strength, co_occurrence_count, created_at, last_strengthened_at`

type LinkStore struct {
	db *pgxpool.Pool
}

func NewLinkStore(db *pgxpool.Pool) *LinkStore {
	return &LinkStore{db: db}
}

func scanLink(row pgx.Row) (*domain.Link, error) {
	l := &domain.Link{}
	err := row.Scan(&l.ID, &l.ProjectID, &l.From.MemoryID, &l.From.Layer, &l.To.MemoryID, &l.To.Layer,
		&l.LinkType, &l.Strength, &l.CoOccurrenceCount, &l.CreatedAt, &l.LastStrengthenedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *LinkStore) UpsertLink(ctx context.Context, l *domain.Link) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	stored, err := scanLink(s.db.QueryRow(ctx,
		`INSERT INTO association_links (id, project_id, from_id, from_layer, to_id, to_layer, link_type, strength)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (project_id, from_id, from_layer, to_id, to_layer) DO UPDATE
		 SET co_occurrence_count = association_links.co_occurrence_count + 1
		 RETURNING `+linkColumns,
		l.ID, string(l.ProjectID), l.From.MemoryID, string(l.From.Layer), l.To.MemoryID, string(l.To.Layer),
		string(l.LinkType), l.Strength,
	))
	if err != nil {
		return storageErr("upsert link", err)
	}
	*l = *stored
	return nil
}

func (s *LinkStore) ReinforceLink(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef, linkType domain.LinkType, rate float64) (*domain.Link, bool, error) {
	id := uuid.New()
	stored, err := scanLink(s.db.QueryRow(ctx,
		`INSERT INTO association_links (id, project_id, from_id, from_layer, to_id, to_layer, link_type, strength)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (project_id, from_id, from_layer, to_id, to_layer) DO UPDATE
		 SET strength = LEAST(1.0, association_links.strength + EXCLUDED.strength * (1.0 - association_links.strength)),
		     co_occurrence_count = association_links.co_occurrence_count + 1,
		     last_strengthened_at = NOW()
		 RETURNING `+linkColumns,
		id, string(projectID), from.MemoryID, string(from.Layer), to.MemoryID, string(to.Layer),
		string(linkType), rate,
	))
	if err != nil {
		return nil, false, storageErr("reinforce link", err)
	}
	return stored, stored.ID == id, nil
}

func (s *LinkStore) GetLink(ctx context.Context, id uuid.UUID) (*domain.Link, error) {
	l, err := scanLink(s.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM association_links WHERE id = $1`, id))
	if err != nil {
		return nil, storageErr("get link", err)
	}
	return l, nil
}

func (s *LinkStore) GetLinkBetween(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef) (*domain.Link, error) {
	l, err := scanLink(s.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM association_links
		 WHERE project_id = $1 AND from_id = $2 AND from_layer = $3 AND to_id = $4 AND to_layer = $5`,
		string(projectID), from.MemoryID, string(from.Layer), to.MemoryID, string(to.Layer)))
	if err != nil {
		return nil, storageErr("get link between", err)
	}
	return l, nil
}

func (s *LinkStore) AdjustStrength(ctx context.Context, id uuid.UUID, delta float64) (float64, error) {
	var strength float64
	err := s.db.QueryRow(ctx,
		`UPDATE association_links
		 SET strength = GREATEST(0.0, LEAST(1.0, strength + $2::double precision)),
		     last_strengthened_at = CASE WHEN $2::double precision > 0 THEN NOW() ELSE last_strengthened_at END
		 WHERE id = $1
		 RETURNING strength`,
		id, delta,
	).Scan(&strength)
	if err != nil {
		return 0, storageErr("adjust strength", err)
	}
	return strength, nil
}

func (s *LinkStore) GetNeighbors(ctx context.Context, projectID domain.ProjectID, nodes []domain.NodeRef, minStrength float64) ([]domain.Link, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	ids := make([]string, len(nodes))
	layers := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.MemoryID
		layers[i] = string(n.Layer)
	}

	rows, err := s.db.Query(ctx,
		`WITH nodes AS (
		     SELECT * FROM unnest($2::text[], $3::text[]) AS n(memory_id, layer)
		 )
		 SELECT `+linkColumns+` FROM association_links l
		 WHERE l.project_id = $1 AND l.strength >= $4
		   AND (EXISTS (SELECT 1 FROM nodes n WHERE n.memory_id = l.from_id AND n.layer = l.from_layer)
		     OR EXISTS (SELECT 1 FROM nodes n WHERE n.memory_id = l.to_id AND n.layer = l.to_layer))
		 ORDER BY l.strength DESC, l.id`,
		string(projectID), ids, layers, minStrength,
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
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM association_links WHERE project_id = $1 AND strength >= $2`,
		string(projectID), minStrength,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count links", err)
	}
	return n, nil
}

func (s *LinkStore) PruneLinks(ctx context.Context, projectID domain.ProjectID, threshold float64) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM association_links WHERE project_id = $1 AND strength <= $2`,
		string(projectID), threshold,
	)
	if err != nil {
		return 0, storageErr("prune links", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *LinkStore) DecayLinks(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE association_links SET strength = GREATEST(0.0, strength - $2)
		 WHERE project_id = $1 AND strength > 0`,
		string(projectID), rate,
	)
	if err != nil {
		return 0, storageErr("decay links", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *LinkStore) AverageStrength(ctx context.Context, projectID domain.ProjectID) (float64, error) {
	var avg float64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(AVG(strength), 0) FROM association_links WHERE project_id = $1`,
		string(projectID),
	).Scan(&avg)
	if err != nil {
		return 0, storageErr("average strength", err)
	}
	return avg, nil
}

func (s *LinkStore) DeleteLinksForNode(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM association_links
		 WHERE project_id = $1
		   AND ((from_id = $2 AND from_layer = $3) OR (to_id = $2 AND to_layer = $3))`,
		string(projectID), node.MemoryID, string(node.Layer),
	)
	if err != nil {
		return 0, storageErr("delete links for node", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *LinkStore) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	return listProjects(ctx, s.db, "list link projects",
		`SELECT DISTINCT project_id FROM association_links ORDER BY project_id`)
}

func listProjects(ctx context.Context, db *pgxpool.Pool, op, query string) ([]domain.ProjectID, error) {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var projects []domain.ProjectID
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, storageErr(op, err)
		}
		projects = append(projects, domain.ProjectID(p))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return projects, nil
}

var _ domain.LinkStore = (*LinkStore)(nil)
