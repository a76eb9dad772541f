package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

type configYAML struct {
	CriticalTemperature *float64 `yaml:"critical-temperature"`
	ResultField         string  `yaml:"result-field,omitempty"`
	AllowDuplicateTimes bool    `yaml:"allow-duplicate-times,omitempty"`
	Workers             int     `yaml:"workers,omitempty"`
	NodeTimeout         string  `yaml:"node-timeout,omitempty"`
	Study               struct {
		Path string `yaml:"path"`
	} `yaml:"study"`
	Selection struct {
		Strategy string `yaml:"strategy,omitempty"`
		Nodes    string `yaml:"nodes,omitempty"`
	} `yaml:"selection,omitempty"`
	Plot struct {
		TitleFormat string `yaml:"title-format,omitempty"`
		TimeAbove   bool   `yaml:"time-above,omitempty"`
		Disabled    bool   `yaml:"disabled,omitempty"`
	} `yaml:"plot,omitempty"`
	Cache struct {
		Enabled bool   `yaml:"enabled,omitempty"`
		Path    string `yaml:"path,omitempty"`
	} `yaml:"cache,omitempty"`
	Archive *struct {
		ConnectionString string `yaml:"connection-string"`
	} `yaml:"archive,omitempty"`
	REST *struct {
		ListenAddr string `yaml:"listen-addr,omitempty"`
		Port       int    `yaml:"port,omitempty"`
	} `yaml:"rest,omitempty"`
	Log struct {
		File       string `yaml:"file,omitempty"`
		MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
		MaxBackups int    `yaml:"max-backups,omitempty"`
		MaxAgeDays int    `yaml:"max-age-days,omitempty"`
	} `yaml:"log,omitempty"`
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	return parseYAML(cfgFile)
}

func parseYAML(data []byte) (*ConfigData, error) {
	var yc configYAML
	if err := yaml.UnmarshalStrict(data, &yc); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		CriticalTemperature: yc.CriticalTemperature,
		ResultField:         yc.ResultField,
		AllowDuplicateTimes: yc.AllowDuplicateTimes,
		Workers:             yc.Workers,
		NodeTimeout:         yc.NodeTimeout,
		Study:               StudyData{Path: yc.Study.Path},
		Selection: SelectionData{
			Strategy: yc.Selection.Strategy,
			Nodes:    yc.Selection.Nodes,
		},
		Plot: PlotData{
			TitleFormat: yc.Plot.TitleFormat,
			TimeAbove:   yc.Plot.TimeAbove,
			Disabled:    yc.Plot.Disabled,
		},
		Cache: CacheData{
			Enabled: yc.Cache.Enabled,
			Path:    yc.Cache.Path,
		},
		Log: LogData{
			File:       yc.Log.File,
			MaxSizeMB:  yc.Log.MaxSizeMB,
			MaxBackups: yc.Log.MaxBackups,
			MaxAgeDays: yc.Log.MaxAgeDays,
		},
	}

	if yc.Archive != nil {
		config.Archive = &ArchiveData{ConnectionString: yc.Archive.ConnectionString}
	}
	if yc.REST != nil {
		config.REST = &RESTData{ListenAddr: yc.REST.ListenAddr, Port: yc.REST.Port}
	}

	config.ApplyDefaults()
	return config, nil
}

// IsReadOnly returns true for YAML provider (read-only for now)
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
