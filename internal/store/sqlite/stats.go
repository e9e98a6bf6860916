package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
)

type HebbianStatsStore struct {
	db *DB
}

func NewHebbianStatsStore(db *DB) *HebbianStatsStore {
	return &HebbianStatsStore{db: db}
}

func (s *HebbianStatsStore) GetStats(ctx context.Context, projectID domain.ProjectID) (*domain.HebbianStats, error) {
	stats := &domain.HebbianStats{ProjectID: projectID}
	var lastRun sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT total_accesses, links_created, links_strengthened, links_weakened, avg_link_strength, last_run_at
		 FROM hebbian_stats WHERE project_id = ?`,
		string(projectID),
	).Scan(&stats.TotalAccesses, &stats.LinksCreated, &stats.LinksStrengthened, &stats.LinksWeakened,
		&stats.AvgLinkStrength, &lastRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats, nil
		}
		return nil, storageErr("get stats", err)
	}
	if lastRun.Valid {
		t := fromNanos(lastRun.Int64)
		stats.LastRunAt = &t
	}
	return stats, nil
}

func (s *HebbianStatsStore) RecordLearningRun(ctx context.Context, projectID domain.ProjectID, created, strengthened int, avgStrength float64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hebbian_stats (project_id, links_created, links_strengthened, avg_link_strength, last_run_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (project_id) DO UPDATE SET
		     links_created = links_created + excluded.links_created,
		     links_strengthened = links_strengthened + excluded.links_strengthened,
		     avg_link_strength = excluded.avg_link_strength,
		     last_run_at = excluded.last_run_at`,
		string(projectID), created, strengthened, avgStrength, toNanos(at))
	return storageErr("record learning run", err)
}

func (s *HebbianStatsStore) RecordWeakened(ctx context.Context, projectID domain.ProjectID, weakened int, avgStrength float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hebbian_stats (project_id, links_weakened, avg_link_strength)
		 VALUES (?, ?, ?)
		 ON CONFLICT (project_id) DO UPDATE SET
		     links_weakened = links_weakened + excluded.links_weakened,
		     avg_link_strength = excluded.avg_link_strength`,
		string(projectID), weakened, avgStrength)
	return storageErr("record weakened", err)
}

var _ domain.HebbianStatsStore = (*HebbianStatsStore)(nil)
