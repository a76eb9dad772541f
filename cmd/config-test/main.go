// Command config-test checks that a YAML configuration and its SQLite conversion agree.
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/chrissnell/thermexposure/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <fafactor.yaml> -sqlite <fafactor.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	diffs := compare(yamlConfig, sqliteConfig)
	for _, d := range diffs {
		fmt.Printf("✗ %s differs\n    YAML:   %+v\n    SQLite: %+v\n", d.section, d.yaml, d.sqlite)
	}
	if len(diffs) > 0 {
		fmt.Printf("\n%d section(s) differ\n", len(diffs))
		os.Exit(1)
	}
	fmt.Println("✓ All sections match")
}

type diff struct {
	section      string
	yaml, sqlite any
}

func compare(y, s *config.ConfigData) []diff {
	sections := []struct {
		name string
		y, s any
	}{
		{"critical temperature", y.CriticalTemperature, s.CriticalTemperature},
		{"result field", y.ResultField, s.ResultField},
		{"allow duplicate times", y.AllowDuplicateTimes, s.AllowDuplicateTimes},
		{"workers", y.Workers, s.Workers},
		{"node timeout", y.NodeTimeout, s.NodeTimeout},
		{"study", y.Study, s.Study},
		{"selection", y.Selection, s.Selection},
		{"plot", y.Plot, s.Plot},
		{"cache", y.Cache, s.Cache},
		{"archive", y.Archive, s.Archive},
		{"rest", y.REST, s.REST},
		{"log", y.Log, s.Log},
	}

	var out []diff
	for _, sec := range sections {
		if !reflect.DeepEqual(sec.y, sec.s) {
			out = append(out, diff{section: sec.name, yaml: sec.y, sqlite: sec.s})
		}
	}
	return out
}
