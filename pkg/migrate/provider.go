package migrate

import (
	"context"
	"fmt"
)

// StaticProvider serves migrations compiled into the binary and tracks the
// applied version in a SQLite table
type StaticProvider struct {
	migrationTable string
	migrations     []Migration
}

// NewStaticProvider creates a provider for the given migrations
func NewStaticProvider(migrationTable string, migrations ...Migration) *StaticProvider {
	return &StaticProvider{
		migrationTable: migrationTable,
		migrations:     migrations,
	}
}

// GetMigrations returns a copy of the migrations, checking that versions are
// positive and unique
func (p *StaticProvider) GetMigrations() ([]Migration, error) {
	seen := make(map[int]bool, len(p.migrations))
	out := make([]Migration, len(p.migrations))
	for i, m := range p.migrations {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration %q has invalid version %d", m.Name, m.Version)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		out[i] = m
	}
	return out, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *StaticProvider) CreateMigrationTable(ctx context.Context, db DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *StaticProvider) GetCurrentVersion(ctx context.Context, db DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)

	var version int
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current one
func (p *StaticProvider) SetVersion(ctx context.Context, db DB, version int) error {
	// Versions above the new current one no longer apply
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version > ?", p.migrationTable), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, p.migrationTable)
	if _, err := db.ExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
