// Package study stores simulation results, the node selection list and the
// user plots of one molding study in a SQLite file. It implements the
// selection, result and plot capabilities of package interfaces.
package study

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/thermexposure/internal/selection"
	"github.com/chrissnell/thermexposure/internal/types"
	"github.com/chrissnell/thermexposure/pkg/migrate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// migrations is the study schema history. Version 2 added the metadata table
// used to stamp saves.
var migrations = []migrate.Migration{
	{
		Version: 1,
		Name:    "results, selection and plots",
		Up: `
CREATE TABLE result_values (
	field TEXT    NOT NULL,
	time  REAL    NOT NULL,
	node  INTEGER NOT NULL,
	value REAL
);
CREATE INDEX result_values_field_time ON result_values (field, time);

CREATE TABLE selection (
	position INTEGER PRIMARY KEY,
	entity   TEXT NOT NULL
);

CREATE TABLE user_plots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	data_type  TEXT NOT NULL,
	indp_name  TEXT NOT NULL,
	dept_name  TEXT NOT NULL,
	dept_unit  TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE user_plot_values (
	plot_id INTEGER NOT NULL REFERENCES user_plots (id),
	node    INTEGER NOT NULL,
	value   REAL    NOT NULL
);`,
		Down: `
DROP TABLE user_plot_values;
DROP TABLE user_plots;
DROP TABLE selection;
DROP TABLE result_values;`,
	},
	{
		Version: 2,
		Name:    "study metadata",
		Up: `
CREATE TABLE study_meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`,
		Down: `DROP TABLE study_meta;`,
	},
}

// Study is an open study file
type Study struct {
	db       *sql.DB
	path     string
	logger   *zap.SugaredLogger
	migrator *migrate.Migrator
}

// OpenFile opens (creating if needed) the study database at path
func OpenFile(path string, logger *zap.SugaredLogger) (*Study, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open study %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping study %s: %w", path, err)
	}
	migrator := migrate.NewMigrator(db, migrate.NewStaticProvider("schema_migrations", migrations...), logger)
	if err := migrator.MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate study schema: %w", err)
	}

	logger.Debugf("opened study %s", path)
	return &Study{db: db, path: path, logger: logger, migrator: migrator}, nil
}

// SchemaStatus reports the applied schema version of the study file
func (s *Study) SchemaStatus(ctx context.Context) (migrate.Status, error) {
	return s.migrator.Status(ctx)
}

// Reset discards all results, the selection list and the plots by reverting
// the schema and applying it again
func (s *Study) Reset(ctx context.Context) error {
	if err := s.migrator.MigrateTo(ctx, 0); err != nil {
		return fmt.Errorf("failed to revert study schema: %w", err)
	}
	if err := s.migrator.MigrateUp(ctx); err != nil {
		return fmt.Errorf("failed to recreate study schema: %w", err)
	}
	s.logger.Infof("reset study %s", s.path)
	return nil
}

// Path returns the study file location
func (s *Study) Path() string {
	return s.path
}

// Close closes the study file
func (s *Study) Close() error {
	return s.db.Close()
}

// Entities returns the raw selection list (N12, T7, ...) in list order
func (s *Study) Entities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity FROM selection ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query selection list: %w", err)
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("failed to scan selection row: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// SelectedNodes returns the nodes of the selection list; other entity kinds
// are ignored
func (s *Study) SelectedNodes(ctx context.Context) ([]types.NodeID, error) {
	entities, err := s.Entities(ctx)
	if err != nil {
		return nil, err
	}
	nodes := selection.FromEntities(entities)
	s.logger.Debugf("selection list holds %d entities, %d nodes", len(entities), len(nodes))
	return nodes, nil
}

// SetSelection replaces the selection list
func (s *Study) SetSelection(ctx context.Context, entities []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM selection`); err != nil {
		return fmt.Errorf("failed to clear selection: %w", err)
	}
	for i, e := range entities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO selection (position, entity) VALUES (?, ?)`, i, e); err != nil {
			return fmt.Errorf("failed to insert selection entry %q: %w", e, err)
		}
	}
	return tx.Commit()
}

// WriteBatch appends the nodal values of one time step of field
func (s *Study) WriteBatch(ctx context.Context, field string, b types.RawBatch) error {
	if len(b.Nodes) != len(b.Values) {
		return fmt.Errorf("batch at t=%g: %d nodes but %d values", b.Time, len(b.Nodes), len(b.Values))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO result_values (field, time, node, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, n := range b.Nodes {
		if _, err := stmt.ExecContext(ctx, field, b.Time, int64(n), b.Values[i]); err != nil {
			return fmt.Errorf("failed to insert value for %v: %w", n, err)
		}
	}
	if err := setMeta(ctx, tx, "results_revision", uuid.NewString()); err != nil {
		return err
	}

	return tx.Commit()
}

// Save stamps the study as saved
func (s *Study) Save(ctx context.Context) error {
	if err := setMeta(ctx, s.db, "saved_at", time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to save study: %w", err)
	}
	s.logger.Infof("study %s saved", s.path)
	return nil
}

// ResultRevision identifies the current content of result_values. It changes
// on every WriteBatch and is empty for a study without results.
func (s *Study) ResultRevision(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM study_meta WHERE name = 'results_revision'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read result revision: %w", err)
	}
	return v, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, name, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO study_meta (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

// SavedAt returns the time of the last Save, if any
func (s *Study) SavedAt(ctx context.Context) (time.Time, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM study_meta WHERE name = 'saved_at'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed saved_at %q: %w", v, err)
	}
	return t, true, nil
}
