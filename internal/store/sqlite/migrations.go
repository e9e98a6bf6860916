package sqlite

import "fmt"

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "association_links: directed weighted edges between memory items",
		SQL: `
CREATE TABLE association_links (
    id                   TEXT PRIMARY KEY,
    project_id           TEXT NOT NULL,
    from_id              TEXT NOT NULL,
    from_layer           TEXT NOT NULL CHECK (from_layer IN ('episodic', 'semantic', 'procedural', 'prospective')),
    to_id                TEXT NOT NULL,
    to_layer             TEXT NOT NULL CHECK (to_layer IN ('episodic', 'semantic', 'procedural', 'prospective')),
    link_type            TEXT NOT NULL CHECK (link_type IN ('semantic', 'temporal', 'causal', 'similarity')),
    strength             REAL NOT NULL CHECK (strength >= 0.0 AND strength <= 1.0),
    co_occurrence_count  INTEGER NOT NULL DEFAULT 1 CHECK (co_occurrence_count >= 1),
    created_at           INTEGER NOT NULL,
    last_strengthened_at INTEGER NOT NULL,

    CHECK (NOT (from_id = to_id AND from_layer = to_layer)),
    UNIQUE (project_id, from_id, from_layer, to_id, to_layer)
);

CREATE INDEX idx_links_from     ON association_links(project_id, from_id, from_layer);
CREATE INDEX idx_links_to       ON association_links(project_id, to_id, to_layer);
CREATE INDEX idx_links_strength ON association_links(project_id, strength DESC);
`,
	},
	{
		Version:     2,
		Description: "activation_states: last propagation snapshot per node",
		SQL: `
CREATE TABLE activation_states (
    project_id       TEXT NOT NULL,
    memory_id        TEXT NOT NULL,
    layer            TEXT NOT NULL,
    activation_level REAL NOT NULL CHECK (activation_level >= 0.0),
    hop_distance     INTEGER NOT NULL CHECK (hop_distance >= 0),
    source_memory_id TEXT NOT NULL,
    source_layer     TEXT NOT NULL,
    updated_at       INTEGER NOT NULL,

    PRIMARY KEY (project_id, memory_id, layer)
);

CREATE INDEX idx_activation_level ON activation_states(project_id, activation_level DESC);
`,
	},
	{
		Version:     3,
		Description: "access_events: append-only memory access log",
		SQL: `
CREATE TABLE access_events (
    seq              INTEGER PRIMARY KEY,
    id               TEXT NOT NULL UNIQUE,
    project_id       TEXT NOT NULL,
    memory_id        TEXT NOT NULL,
    layer            TEXT NOT NULL,
    activation_level REAL NOT NULL CHECK (activation_level >= 0.0 AND activation_level <= 1.0),
    accessed_at      INTEGER NOT NULL
);

CREATE INDEX idx_access_project_time ON access_events(project_id, accessed_at, seq);
`,
	},
	{
		Version:     4,
		Description: "hebbian_stats: per-project learning counters",
		SQL: `
CREATE TABLE hebbian_stats (
    project_id         TEXT PRIMARY KEY,
    total_accesses     INTEGER NOT NULL DEFAULT 0,
    links_created      INTEGER NOT NULL DEFAULT 0,
    links_strengthened INTEGER NOT NULL DEFAULT 0,
    links_weakened     INTEGER NOT NULL DEFAULT 0,
    avg_link_strength  REAL NOT NULL DEFAULT 0,
    last_run_at        INTEGER
);
`,
	},
	{
		Version:     5,
		Description: "access_events.learned_at: marks events consumed by a Hebbian pass",
		SQL: `
ALTER TABLE access_events ADD COLUMN learned_at INTEGER;

CREATE INDEX idx_access_unlearned ON access_events(project_id, learned_at);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
