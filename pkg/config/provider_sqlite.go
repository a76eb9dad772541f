package config

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Settings are stored as key/value rows using dotted keys (plot.title_format).
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings table: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	rows, err := s.db.Query(`SELECT name, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		settings[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	config, err := fromSettings(settings)
	if err != nil {
		return nil, err
	}
	config.ApplyDefaults()
	return config, nil
}

// SaveConfig replaces the stored settings with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}

	settings := toSettings(configData)
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := tx.Exec(`INSERT INTO settings (name, value) VALUES (?, ?)`, k, settings[k]); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// IsReadOnly returns false; SaveConfig can update the database
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toSettings(c *ConfigData) map[string]string {
	m := map[string]string{
		"result_field":          c.ResultField,
		"allow_duplicate_times": strconv.FormatBool(c.AllowDuplicateTimes),
		"workers":               strconv.Itoa(c.Workers),
		"node_timeout":          c.NodeTimeout,
		"study.path":            c.Study.Path,
		"selection.strategy":    c.Selection.Strategy,
		"selection.nodes":       c.Selection.Nodes,
		"plot.title_format":     c.Plot.TitleFormat,
		"plot.time_above":       strconv.FormatBool(c.Plot.TimeAbove),
		"plot.disabled":         strconv.FormatBool(c.Plot.Disabled),
		"cache.enabled":         strconv.FormatBool(c.Cache.Enabled),
		"cache.path":            c.Cache.Path,
		"log.file":              c.Log.File,
		"log.max_size_mb":       strconv.Itoa(c.Log.MaxSizeMB),
		"log.max_backups":       strconv.Itoa(c.Log.MaxBackups),
		"log.max_age_days":      strconv.Itoa(c.Log.MaxAgeDays),
	}
	if c.CriticalTemperature != nil {
		m["critical_temperature"] = strconv.FormatFloat(*c.CriticalTemperature, 'g', -1, 64)
	}
	if c.Archive != nil {
		m["archive.connection_string"] = c.Archive.ConnectionString
	}
	if c.REST != nil {
		m["rest.listen_addr"] = c.REST.ListenAddr
		m["rest.port"] = strconv.Itoa(c.REST.Port)
	}
	return m
}

func fromSettings(m map[string]string) (*ConfigData, error) {
	c := &ConfigData{
		ResultField: m["result_field"],
		NodeTimeout: m["node_timeout"],
		Study:       StudyData{Path: m["study.path"]},
		Selection:   SelectionData{Strategy: m["selection.strategy"], Nodes: m["selection.nodes"]},
		Plot:        PlotData{TitleFormat: m["plot.title_format"]},
		Cache:       CacheData{Path: m["cache.path"]},
		Log:         LogData{File: m["log.file"]},
	}

	var err error
	floatSetting := func(key string, dst **float64) {
		if v, ok := m[key]; ok && v != "" && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("setting %s: %w", key, perr)
				return
			}
			*dst = &f
		}
	}
	intSetting := func(key string, dst *int) {
		if v, ok := m[key]; ok && v != "" && err == nil {
			if *dst, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("setting %s: %w", key, err)
			}
		}
	}
	boolSetting := func(key string, dst *bool) {
		if v, ok := m[key]; ok && v != "" && err == nil {
			if *dst, err = strconv.ParseBool(v); err != nil {
				err = fmt.Errorf("setting %s: %w", key, err)
			}
		}
	}

	floatSetting("critical_temperature", &c.CriticalTemperature)
	boolSetting("allow_duplicate_times", &c.AllowDuplicateTimes)
	intSetting("workers", &c.Workers)
	boolSetting("plot.time_above", &c.Plot.TimeAbove)
	boolSetting("plot.disabled", &c.Plot.Disabled)
	boolSetting("cache.enabled", &c.Cache.Enabled)
	intSetting("log.max_size_mb", &c.Log.MaxSizeMB)
	intSetting("log.max_backups", &c.Log.MaxBackups)
	intSetting("log.max_age_days", &c.Log.MaxAgeDays)

	if cs, ok := m["archive.connection_string"]; ok && cs != "" {
		c.Archive = &ArchiveData{ConnectionString: cs}
	}
	if addr, ok := m["rest.listen_addr"]; ok {
		c.REST = &RESTData{ListenAddr: addr}
		intSetting("rest.port", &c.REST.Port)
	}

	if err != nil {
		return nil, err
	}
	return c, nil
}
