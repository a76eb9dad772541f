package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

var testMigrations = []Migration{
	{Version: 1, Name: "plots", Up: `CREATE TABLE plots (id INTEGER PRIMARY KEY, name TEXT)`, Down: `DROP TABLE plots`},
	{Version: 2, Name: "plot units", Up: `ALTER TABLE plots ADD COLUMN unit TEXT`, Down: `ALTER TABLE plots DROP COLUMN unit`},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func currentVersion(t *testing.T, m *Migrator) int {
	t.Helper()
	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return st.Current
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, NewStaticProvider("schema_migrations", testMigrations...), nil)

	if err := m.MigrateUp(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := currentVersion(t, m); v != 2 {
		t.Fatalf("expected version 2, got %d", v)
	}
	if _, err := db.Exec(`INSERT INTO plots (name, unit) VALUES ('fA', 'K*s')`); err != nil {
		t.Fatalf("expected migrated schema: %v", err)
	}

	// Running again is a no-op
	if err := m.MigrateUp(ctx); err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}

	if err := m.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Current != 1 || st.Latest != 2 || st.UpToDate() {
		t.Errorf("expected version 1 of 2, got %+v", st)
	}
	if len(st.Pending) != 1 || st.Pending[0].Version != 2 {
		t.Errorf("expected migration 2 pending, got %v", st.Pending)
	}

	if err := m.MigrateTo(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := currentVersion(t, m); v != 0 {
		t.Errorf("expected version 0 after full rollback, got %d", v)
	}
	if _, err := db.Exec(`SELECT 1 FROM plots`); err == nil {
		t.Error("expected plots table to be dropped")
	}
}

func TestMigrateToRejectsUnknownVersion(t *testing.T) {
	m := NewMigrator(openDB(t), NewStaticProvider("schema_migrations", testMigrations...), nil)
	if err := m.MigrateTo(context.Background(), 3); err == nil {
		t.Fatal("expected an error for an unknown target")
	}
}

func TestPlanOrder(t *testing.T) {
	three := append(append([]Migration{}, testMigrations...), Migration{Version: 3, Name: "x"})

	up := plan(three, 1, 3)
	if len(up) != 2 || !up[0].up || up[0].migration.Version != 2 || up[1].migration.Version != 3 {
		t.Errorf("unexpected up plan %+v", up)
	}
	down := plan(three, 3, 1)
	if len(down) != 2 || down[0].up || down[0].migration.Version != 3 || down[1].migration.Version != 2 {
		t.Errorf("unexpected down plan %+v", down)
	}
	if steps := plan(three, 2, 2); len(steps) != 0 {
		t.Errorf("expected an empty plan, got %+v", steps)
	}
}

func TestStaticProviderRejectsDuplicates(t *testing.T) {
	p := NewStaticProvider("schema_migrations", testMigrations[0], testMigrations[0])
	if _, err := p.GetMigrations(); err == nil {
		t.Fatal("expected an error for duplicate versions")
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	bad := append([]Migration{}, testMigrations[0], Migration{Version: 2, Name: "broken", Up: `ALTER TABLE nope ADD COLUMN x`})
	m := NewMigrator(db, NewStaticProvider("schema_migrations", bad...), nil)

	if err := m.MigrateUp(ctx); err == nil {
		t.Fatal("expected the broken migration to fail")
	}
	if v := currentVersion(t, m); v != 1 {
		t.Errorf("expected version to stay at 1, got %d", v)
	}
}
