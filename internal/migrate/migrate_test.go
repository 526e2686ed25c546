package migrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func TestRun_appliesOnce(t *testing.T) {
	db := openMemory(t)

	applied, err := Run(db, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(applied) == 0 || applied[0].Version != "0001" || applied[0].Name != "selections" {
		t.Fatalf("applied = %+v; want 0001_selections first", applied)
	}

	if _, err := db.Exec(`INSERT INTO selections (sensor_id, sensor_name, selected_at) VALUES ('a', 'A', '2025-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("selections table not usable: %v", err)
	}

	again, err := Run(db, nil)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Run applied %+v; want nothing", again)
	}
}

func TestStatus(t *testing.T) {
	db := openMemory(t)

	before, err := Status(db)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, m := range before {
		if m.Applied {
			t.Errorf("%s applied before Run", m.Version)
		}
	}
	if _, err := Run(db, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after, err := Status(db)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("len = %d; want %d", len(after), len(before))
	}
	for _, m := range after {
		if !m.Applied {
			t.Errorf("%s not applied after Run", m.Version)
		}
	}
}

func TestEmbedded_orderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte("SELECT 2;")},
		"sql/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"sql/README.md":       {Data: []byte("notes")},
		"sql/1_bad.sql":       {Data: []byte("SELECT 0;")},
	}
	got, err := embedded(fsys)
	if err != nil {
		t.Fatalf("embedded: %v", err)
	}
	if len(got) != 2 || got[0].Name != "first" || got[1].Name != "second" {
		t.Errorf("embedded = %+v; want first, second", got)
	}
}

func TestApply_rollsBackOnError(t *testing.T) {
	db := openMemory(t)
	if err := ensureMigrationsTable(db); err != nil {
		t.Fatalf("ensure table: %v", err)
	}
	err := apply(db, Migration{Version: "9999", Name: "broken", body: "CREATE TABLE ok (id INTEGER); NOT SQL;"})
	if err == nil {
		t.Fatal("apply(broken) = nil; want error")
	}
	done, err := appliedVersions(db)
	if err != nil {
		t.Fatalf("appliedVersions: %v", err)
	}
	if done["9999"] {
		t.Error("broken migration recorded as applied")
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in            string
		version, name string
		ok            bool
	}{
		{in: "0001_selections.sql", version: "0001", name: "selections", ok: true},
		{in: "0010_add_index.sql", version: "0010", name: "add_index", ok: true},
		{in: "001_short.sql", ok: false},
		{in: "0001_selections.txt", ok: false},
	}
	for _, tt := range tests {
		v, n, ok := parseMigrationFilename(tt.in)
		if ok != tt.ok || v != tt.version || n != tt.name {
			t.Errorf("parseMigrationFilename(%q) = %q, %q, %v; want %q, %q, %v", tt.in, v, n, ok, tt.version, tt.name, tt.ok)
		}
	}
}
