package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS association_links (
    id                   UUID PRIMARY KEY,
    project_id           TEXT NOT NULL,
    from_id              TEXT NOT NULL,
    from_layer           TEXT NOT NULL CHECK (from_layer IN ('episodic', 'semantic', 'procedural', 'prospective')),
    to_id                TEXT NOT NULL,
    to_layer             TEXT NOT NULL CHECK (to_layer IN ('episodic', 'semantic', 'procedural', 'prospective')),
    link_type            TEXT NOT NULL CHECK (link_type IN ('semantic', 'temporal', 'causal', 'similarity')),
    strength             DOUBLE PRECISION NOT NULL CHECK (strength >= 0 AND strength <= 1),
    co_occurrence_count  INTEGER NOT NULL DEFAULT 1 CHECK (co_occurrence_count >= 1),
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_strengthened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (NOT (from_id = to_id AND from_layer = to_layer)),
    UNIQUE (project_id, from_id, from_layer, to_id, to_layer)
);
CREATE INDEX IF NOT EXISTS idx_links_from ON association_links (project_id, from_id, from_layer);
CREATE INDEX IF NOT EXISTS idx_links_to ON association_links (project_id, to_id, to_layer);
CREATE INDEX IF NOT EXISTS idx_links_strength ON association_links (project_id, strength);

CREATE TABLE IF NOT EXISTS activation_states (
    project_id       TEXT NOT NULL,
    memory_id        TEXT NOT NULL,
    layer            TEXT NOT NULL,
    activation_level DOUBLE PRECISION NOT NULL CHECK (activation_level >= 0),
    hop_distance     INTEGER NOT NULL CHECK (hop_distance >= 0),
    source_memory_id TEXT NOT NULL,
    source_layer     TEXT NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (project_id, memory_id, layer)
);
CREATE INDEX IF NOT EXISTS idx_activation_level ON activation_states (project_id, activation_level DESC);

CREATE TABLE IF NOT EXISTS access_events (
    seq              BIGSERIAL PRIMARY KEY,
    id               UUID NOT NULL UNIQUE,
    project_id       TEXT NOT NULL,
    memory_id        TEXT NOT NULL,
    layer            TEXT NOT NULL,
    activation_level DOUBLE PRECISION NOT NULL CHECK (activation_level >= 0 AND activation_level <= 1),
    accessed_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    learned_at       TIMESTAMPTZ
);
ALTER TABLE access_events ADD COLUMN IF NOT EXISTS learned_at TIMESTAMPTZ;
CREATE INDEX IF NOT EXISTS idx_access_project_time ON access_events (project_id, accessed_at);
CREATE INDEX IF NOT EXISTS idx_access_unlearned ON access_events (project_id, learned_at);

CREATE TABLE IF NOT EXISTS hebbian_stats (
    project_id         TEXT PRIMARY KEY,
    total_accesses     BIGINT NOT NULL DEFAULT 0,
    links_created      BIGINT NOT NULL DEFAULT 0,
    links_strengthened BIGINT NOT NULL DEFAULT 0,
    links_weakened     BIGINT NOT NULL DEFAULT 0,
    avg_link_strength  DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_run_at        TIMESTAMPTZ
);
`

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return storageErr("migrate", err)
}
