// Package migrate applies versioned SQL schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Latest targets the highest known migration version
const Latest = -1

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by *sql.DB and *sql.Tx
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MigrationProvider defines how migrations are loaded and how the applied
// version is tracked
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	CreateMigrationTable(ctx context.Context, db DB) error
	GetCurrentVersion(ctx context.Context, db DB) (int, error)
	SetVersion(ctx context.Context, db DB, version int) error
}

// Status describes where a database stands in the migration history
type Status struct {
	Current int
	Latest  int
	Pending []Migration
}

// UpToDate reports whether no migration is pending
func (s Status) UpToDate() bool {
	return len(s.Pending) == 0
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger discards the
// per-migration messages.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp applies every pending migration
func (m *Migrator) MigrateUp(ctx context.Context) error {
	return m.MigrateTo(ctx, Latest)
}

// MigrateTo moves the schema up or down until target is the current version.
// Target 0 reverts every migration.
func (m *Migrator) MigrateTo(ctx context.Context, target int) error {
	migrations, current, err := m.load(ctx)
	if err != nil {
		return err
	}

	if target == Latest {
		target = latestVersion(migrations)
	}
	if target < 0 || target > latestVersion(migrations) {
		return fmt.Errorf("unknown target version %d", target)
	}

	for _, s := range plan(migrations, current, target) {
		if err := m.apply(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the applied and pending migrations
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	migrations, current, err := m.load(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{Current: current, Latest: latestVersion(migrations)}
	for _, mg := range migrations {
		if mg.Version > current {
			st.Pending = append(st.Pending, mg)
		}
	}
	return st, nil
}

// load returns the migrations sorted by version and the current version
func (m *Migrator) load(ctx context.Context) ([]Migration, int, error) {
	if err := m.provider.CreateMigrationTable(ctx, m.db); err != nil {
		return nil, 0, err
	}
	current, err := m.provider.GetCurrentVersion(ctx, m.db)
	if err != nil {
		return nil, 0, err
	}
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, current, nil
}

func latestVersion(migrations []Migration) int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}

// step is one migration run in one direction
type step struct {
	migration Migration
	up        bool
}

// plan lists the steps from current to target. migrations must be sorted.
func plan(migrations []Migration, current, target int) []step {
	var steps []step
	if target >= current {
		for _, mg := range migrations {
			if mg.Version > current && mg.Version <= target {
				steps = append(steps, step{migration: mg, up: true})
			}
		}
		return steps
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		mg := migrations[i]
		if mg.Version > target && mg.Version <= current {
			steps = append(steps, step{migration: mg})
		}
	}
	return steps
}

// apply runs one step and records the resulting version in the same transaction
func (m *Migrator) apply(ctx context.Context, s step) error {
	query, direction, version := s.migration.Down, "down", s.migration.Version-1
	if s.up {
		query, direction, version = s.migration.Up, "up", s.migration.Version
	}
	if query == "" {
		return fmt.Errorf("migration %d has no %s SQL", s.migration.Version, direction)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migration %d (%s) %s failed: %w", s.migration.Version, s.migration.Name, direction, err)
	}
	if err := m.provider.SetVersion(ctx, tx, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", s.migration.Version, err)
	}

	m.logger.Debugf("applied migration %d (%s) %s", s.migration.Version, s.migration.Name, direction)
	return nil
}
