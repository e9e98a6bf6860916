package sqlite

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := openTestDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "synapse.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	// Reopening must not re-apply migrations.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestSchemaVersion(t *testing.T) {
	db := openTestDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 5 {
		t.Errorf("SchemaVersion = %d, want 5", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := openTestDB(t)

	tables := []string{"schema_versions", "association_links", "activation_states", "access_events", "hebbian_stats"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestLinkConstraints(t *testing.T) {
	db := openTestDB(t)

	insert := `INSERT INTO association_links
		(id, project_id, from_id, from_layer, to_id, to_layer, link_type, strength, created_at, last_strengthened_at)
		VALUES (?, 'p', ?, ?, ?, ?, ?, ?, 1, 1)`

	if _, err := db.Exec(insert, "l1", "a", "semantic", "b", "semantic", "temporal", 0.5); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	cases := []struct {
		name string
		args []any
	}{
		{"self link", []any{"l2", "a", "semantic", "a", "semantic", "temporal", 0.5}},
		{"bad layer", []any{"l3", "a", "working", "b", "semantic", "temporal", 0.5}},
		{"bad link type", []any{"l4", "a", "semantic", "c", "semantic", "friendship", 0.5}},
		{"strength above one", []any{"l5", "a", "semantic", "d", "semantic", "temporal", 1.5}},
		{"duplicate endpoints", []any{"l6", "a", "semantic", "b", "semantic", "causal", 0.2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := db.Exec(insert, tc.args...); err == nil {
				t.Errorf("expected constraint violation for %s", tc.name)
			}
		})
	}
}
