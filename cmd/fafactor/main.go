// Command fafactor computes per-node thermal exposure factors (ft, fA) of a
// study and writes them back as contour plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/thermexposure/internal/app"
	"github.com/chrissnell/thermexposure/internal/constants"
	"github.com/chrissnell/thermexposure/internal/log"
	"github.com/chrissnell/thermexposure/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "fafactor.yaml", "Path to configuration source:\n\t\t\t  YAML: fafactor.yaml\n\t\t\t  SQLite: fafactor.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	tcrit := flag.Float64("tcrit", 0, "Critical temperature in the study's unit; overrides the configuration")
	nodes := flag.String("nodes", "", "Analyse these nodes instead of the configured selection, e.g. \"N491038 N491099\"")
	csvPath := flag.String("csv", "", "Also write the per-node results to this CSV file")
	serve := flag.Bool("serve", false, "Serve the report over HTTP after the run")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fafactor %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up console logging until the configuration tells us about a log file
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	provider, err := newProvider(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to open configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		log.Errorf("Error reading config file. Did you pass the -config flag? Run with -h for help: %v", err)
		os.Exit(1)
	}
	if cfgData.Log.File != "" {
		if err := log.InitWithFile(*debug, log.FileConfig{
			Path:       cfgData.Log.File,
			MaxSizeMB:  cfgData.Log.MaxSizeMB,
			MaxBackups: cfgData.Log.MaxBackups,
			MaxAgeDays: cfgData.Log.MaxAgeDays,
		}); err != nil {
			log.Errorf("Failed to open log file %s: %v", cfgData.Log.File, err)
			os.Exit(1)
		}
	}

	opts := app.Options{
		Nodes:   *nodes,
		Serve:   *serve,
		CSVPath: *csvPath,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "tcrit" {
			opts.CriticalTemperature = tcrit
		}
	})

	application := app.New(provider, log.GetSugaredLogger(), opts)
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func newProvider(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
}
