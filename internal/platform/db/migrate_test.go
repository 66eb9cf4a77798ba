package db

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/telemeds/telemeds/migrations"
)

func memMigrations(t *testing.T, files map[string]string) *Migrator {
	t.Helper()
	mem := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(mem, name, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}
	return NewMigrator(nil, afero.NewIOFS(mem))
}

func TestLoadMigrations(t *testing.T) {
	migrator := memMigrations(t, map[string]string{
		"001_documents.sql": "CREATE TABLE prescriptions (id UUID PRIMARY KEY);",
		"002_indexes.sql":   "CREATE INDEX idx ON prescriptions (id);",
	})

	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "001_documents.sql" {
		t.Errorf("expected name 001_documents.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE prescriptions (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	migrator := memMigrations(t, map[string]string{
		"010_tables.sql": "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"005_middle.sql": "SELECT 5;",
	})

	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expectedVersions := []int{1, 2, 5, 10}
	if len(migrations) != len(expectedVersions) {
		t.Fatalf("expected %d migrations, got %d", len(expectedVersions), len(migrations))
	}
	for i, expected := range expectedVersions {
		if migrations[i].Version != expected {
			t.Errorf("migration[%d]: expected version %d, got %d", i, expected, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	migrator := memMigrations(t, map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- this has no version prefix",
		"notes.txt":          "not a sql file",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
	})

	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	migrator := memMigrations(t, map[string]string{
		"001_a.sql": "SELECT 1;",
		"1_b.sql":   "SELECT 1;",
	})

	if _, err := migrator.LoadMigrations(); err == nil {
		t.Error("expected error for duplicate migration version")
	}
}

func TestLoadMigrations_Embedded(t *testing.T) {
	migs, err := NewMigrator(nil, migrations.FS).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migs) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if migs[0].Version != 1 {
		t.Errorf("expected first embedded migration to be version 1, got %d", migs[0].Version)
	}
	for _, table := range []string{"prescriptions", "consultations", "health_records"} {
		if !strings.Contains(migs[0].SQL, table) {
			t.Errorf("expected first migration to create %s", table)
		}
	}
}

func TestBuildStatus(t *testing.T) {
	migs := []Migration{
		{Version: 1, Name: "001_documents.sql"},
		{Version: 2, Name: "002_indexes.sql"},
	}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	statuses := buildStatus(migs, map[int]time.Time{1: at})

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 001 applied at %s, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected migration 002 pending, got %+v", statuses[1])
	}
}

func TestPending(t *testing.T) {
	migs := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := pending(migs, map[int]time.Time{2: time.Now()})

	if len(got) != 2 || got[0].Version != 1 || got[1].Version != 3 {
		t.Errorf("expected versions [1 3], got %+v", got)
	}
}

func TestValidateSchema(t *testing.T) {
	for _, ok := range []string{"public", "telemeds", "_private", "s1"} {
		if err := ValidateSchema(ok); err != nil {
			t.Errorf("ValidateSchema(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "public; DROP TABLE x", "a-b", "a.b"} {
		if err := ValidateSchema(bad); err == nil {
			t.Errorf("ValidateSchema(%q) = nil, want error", bad)
		}
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	mem := afero.NewMemMapFs()
	migrator := NewMigrator(nil, afero.NewIOFS(afero.NewBasePathFs(mem, "/nope")))
	if _, err := migrator.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
