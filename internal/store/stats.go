package store

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type HebbianStatsStore struct {
	db *pgxpool.Pool
}

func NewHebbianStatsStore(db *pgxpool.Pool) *HebbianStatsStore {
	return &HebbianStatsStore{db: db}
}

func (s *HebbianStatsStore) GetStats(ctx context.Context, projectID domain.ProjectID) (*domain.HebbianStats, error) {
	stats := &domain.HebbianStats{ProjectID: projectID}
	err := s.db.QueryRow(ctx,
		`SELECT total_accesses, links_created, links_strengthened, links_weakened, avg_link_strength, last_run_at
		 FROM hebbian_stats WHERE project_id = $1`,
		string(projectID),
	).Scan(&stats.TotalAccesses, &stats.LinksCreated, &stats.LinksStrengthened, &stats.LinksWeakened,
		&stats.AvgLinkStrength, &stats.LastRunAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats, nil
		}
		return nil, storageErr("get stats", err)
	}
	return stats, nil
}

func (s *HebbianStatsStore) RecordLearningRun(ctx context.Context, projectID domain.ProjectID, created, strengthened int, avgStrength float64, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO hebbian_stats (project_id, links_created, links_strengthened, avg_link_strength, last_run_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id) DO UPDATE SET
		     links_created = hebbian_stats.links_created + EXCLUDED.links_created,
		     links_strengthened = hebbian_stats.links_strengthened + EXCLUDED.links_strengthened,
		     avg_link_strength = EXCLUDED.avg_link_strength,
		     last_run_at = EXCLUDED.last_run_at`,
		string(projectID), created, strengthened, avgStrength, at)
	return storageErr("record learning run", err)
}

func (s *HebbianStatsStore) RecordWeakened(ctx context.Context, projectID domain.ProjectID, weakened int, avgStrength float64) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO hebbian_stats (project_id, links_weakened, avg_link_strength)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (project_id) DO UPDATE SET
		     links_weakened = hebbian_stats.links_weakened + EXCLUDED.links_weakened,
		     avg_link_strength = EXCLUDED.avg_link_strength`,
		string(projectID), weakened, avgStrength)
	return storageErr("record weakened", err)
}

var _ domain.HebbianStatsStore = (*HebbianStatsStore)(nil)
