// Package config loads the settings of an exposure run from YAML files or
// SQLite databases.
package config

import (
	"fmt"
	"math"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

const (
	DefaultCriticalTemperature = 140.0
	DefaultResultField         = "Temperature"
	DefaultPlotTitleFormat     = "fA-factor plot (average: %.2f K*s)"
	DefaultRESTPort            = 8080
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	CriticalTemperature *float64      `json:"critical_temperature"` // nil means DefaultCriticalTemperature; 0 is a valid threshold
	ResultField         string        `json:"result_field"`
	AllowDuplicateTimes bool          `json:"allow_duplicate_times,omitempty"`
	Workers             int           `json:"workers,omitempty"`
	NodeTimeout         string        `json:"node_timeout,omitempty"`
	Study               StudyData     `json:"study"`
	Selection           SelectionData `json:"selection"`
	Plot                PlotData      `json:"plot"`
	Cache               CacheData     `json:"cache,omitempty"`
	Archive             *ArchiveData  `json:"archive,omitempty"`
	REST                *RESTData     `json:"rest,omitempty"`
	Log                 LogData       `json:"log,omitempty"`
}

// StudyData locates the study results database
type StudyData struct {
	Path string `json:"path"`
}

// SelectionData chooses the analysed nodes
type SelectionData struct {
	Strategy string `json:"strategy,omitempty"` // "study" or "manual"
	Nodes    string `json:"nodes,omitempty"`    // e.g. "N491038 N491099"
}

// PlotData controls the plots written back into the study
type PlotData struct {
	TitleFormat string `json:"title_format,omitempty"`
	TimeAbove   bool   `json:"time_above,omitempty"` // also plot ft
	Disabled    bool   `json:"disabled,omitempty"`
}

// CacheData controls the on-disk cache of fetched results
type CacheData struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ArchiveData configures the PostgreSQL results archive
type ArchiveData struct {
	ConnectionString string `json:"connection_string"`
}

// RESTData configures the report server
type RESTData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
}

// LogData configures the optional rotated log file
type LogData struct {
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

// Float64 returns a pointer to v, for optional settings
func Float64(v float64) *float64 {
	return &v
}

// Tcrit returns the critical temperature, or the default when unset
func (c *ConfigData) Tcrit() float64 {
	if c.CriticalTemperature == nil {
		return DefaultCriticalTemperature
	}
	return *c.CriticalTemperature
}

// ApplyDefaults fills unset fields
func (c *ConfigData) ApplyDefaults() {
	if c.CriticalTemperature == nil {
		c.CriticalTemperature = Float64(DefaultCriticalTemperature)
	}
	if c.ResultField == "" {
		c.ResultField = DefaultResultField
	}
	if c.Selection.Strategy == "" {
		c.Selection.Strategy = "study"
	}
	if c.Plot.TitleFormat == "" {
		c.Plot.TitleFormat = DefaultPlotTitleFormat
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		c.Cache.Path = "nodal_results.msgpack"
	}
	if c.REST != nil {
		if c.REST.ListenAddr == "" {
			c.REST.ListenAddr = "127.0.0.1"
		}
		if c.REST.Port == 0 {
			c.REST.Port = DefaultRESTPort
		}
	}
}

// Validate checks the values ApplyDefaults cannot fix
func (c *ConfigData) Validate() error {
	if c.CriticalTemperature == nil {
		return fmt.Errorf("critical_temperature is not set")
	}
	if math.IsNaN(*c.CriticalTemperature) || math.IsInf(*c.CriticalTemperature, 0) {
		return fmt.Errorf("critical_temperature must be a finite number")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.NodeTimeoutDuration(); err != nil {
		return err
	}
	if c.Study.Path == "" {
		return fmt.Errorf("study.path is required")
	}
	if c.Selection.Strategy == "manual" && c.Selection.Nodes == "" {
		return fmt.Errorf("selection.nodes is required with the manual strategy")
	}
	if c.Archive != nil && c.Archive.ConnectionString == "" {
		return fmt.Errorf("archive.connection_string is required when archive is configured")
	}
	return nil
}

// NodeTimeoutDuration parses NodeTimeout; empty means no limit
func (c *ConfigData) NodeTimeoutDuration() (time.Duration, error) {
	if c.NodeTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.NodeTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid node_timeout %q: %w", c.NodeTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("node_timeout must not be negative")
	}
	return d, nil
}
