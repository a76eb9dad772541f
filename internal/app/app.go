package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/thermexposure/internal/batch"
	"github.com/chrissnell/thermexposure/internal/controllers/restserver"
	"github.com/chrissnell/thermexposure/internal/database"
	"github.com/chrissnell/thermexposure/internal/interfaces"
	"github.com/chrissnell/thermexposure/internal/log"
	"github.com/chrissnell/thermexposure/internal/selection"
	"github.com/chrissnell/thermexposure/internal/study"
	"github.com/chrissnell/thermexposure/pkg/config"
	"go.uber.org/zap"
)

// Options carries the command-line overrides of one run
type Options struct {
	// CriticalTemperature overrides the configured threshold when set
	CriticalTemperature *float64

	// Nodes, when non-empty, forces the manual strategy with this list
	Nodes string

	// Serve keeps the report server running after the run
	Serve bool

	// CSVPath writes the per-node table to a file when set
	CSVPath string

	Stdout io.Writer
}

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	opts           Options
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger, opts Options) *App {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
		opts:           opts,
	}
}

// LoadConfig reads the configuration and applies the command-line overrides
func (a *App) LoadConfig() (*config.ConfigData, error) {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	if a.opts.CriticalTemperature != nil {
		cfg.CriticalTemperature = config.Float64(*a.opts.CriticalTemperature)
	}
	if a.opts.Nodes != "" {
		cfg.Selection.Strategy = string(selection.StrategyManual)
		cfg.Selection.Nodes = a.opts.Nodes
	}
	if a.opts.Serve && cfg.REST == nil {
		cfg.REST = &config.RESTData{}
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Run executes one exposure run and, if asked to serve, blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.LoadConfig()
	if err != nil {
		return err
	}

	st, err := study.OpenFile(cfg.Study.Path, a.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	schema, err := st.SchemaStatus(ctx)
	if err != nil {
		return err
	}
	a.logger.Debugf("study schema at version %d of %d", schema.Current, schema.Latest)

	var sel interfaces.SelectionProvider = st
	strategy, err := selection.ParseStrategy(cfg.Selection.Strategy)
	if err != nil {
		return err
	}
	if strategy == selection.StrategyManual {
		sel, err = selection.NewManual(cfg.Selection.Nodes)
		if err != nil {
			return err
		}
	}

	pipeline := &Pipeline{
		Selection: sel,
		Results:   st,
		Plots:     st,
		StudyName: cfg.Study.Path,
		Logger:    a.logger,
	}

	a.logger.Infof("critical temperature %.2f, result field %q, selection %s", cfg.Tcrit(), cfg.ResultField, strategy)

	report, err := pipeline.Execute(ctx, cfg)
	if report == nil {
		return err
	}
	if err != nil {
		// The numbers are still worth printing when only plotting failed
		a.logger.Errorf("%v", err)
	}

	if cfg.Archive != nil {
		if aerr := a.archive(ctx, cfg, report); aerr != nil {
			a.logger.Errorf("archiving run %s failed: %v", report.RunID, aerr)
		}
	}

	if werr := report.WriteSummary(a.opts.Stdout); werr != nil {
		return werr
	}
	if a.opts.CSVPath != "" {
		if werr := writeCSV(a.opts.CSVPath, report); werr != nil {
			return werr
		}
		a.logger.Infof("per-node results written to %s", a.opts.CSVPath)
	}
	if err != nil {
		return err
	}

	if !a.opts.Serve {
		return nil
	}

	rest, err := restserver.NewController(ctx, &wg, *cfg.REST, a.logger)
	if err != nil {
		return err
	}
	rest.SetReport(report)
	if err := rest.StartController(); err != nil {
		return err
	}

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	log.Info("waiting for the report server to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

func (a *App) archive(ctx context.Context, cfg *config.ConfigData, report *batch.Report) error {
	client, err := database.NewClient(cfg.Archive.ConnectionString, a.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.StoreReport(ctx, cfg.Study.Path, cfg.ResultField, report)
}

func writeCSV(path string, report *batch.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := report.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
