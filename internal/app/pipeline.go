package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/thermexposure/internal/batch"
	"github.com/chrissnell/thermexposure/internal/cache"
	"github.com/chrissnell/thermexposure/internal/constants"
	"github.com/chrissnell/thermexposure/internal/interfaces"
	"github.com/chrissnell/thermexposure/internal/series"
	"github.com/chrissnell/thermexposure/internal/types"
	"github.com/chrissnell/thermexposure/pkg/config"
	"go.uber.org/zap"
)

// Pipeline wires the collaborators of one exposure run
type Pipeline struct {
	Selection interfaces.SelectionProvider
	Results   interfaces.ResultProvider
	Plots     interfaces.PlotSink // nil skips plotting

	// StudyName keys the cache; usually the study path
	StudyName string
	Logger    *zap.SugaredLogger
}

// Execute selects the nodes, loads and assembles their histories, solves
// them and writes the plots back. Assembly errors abort; per-node errors
// end up in the report.
func (p *Pipeline) Execute(ctx context.Context, cfg *config.ConfigData) (*batch.Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	nodes, err := p.Selection.SelectedNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading node selection: %w", err)
	}
	if len(nodes) == 0 {
		return nil, errors.New("no nodes selected")
	}
	logger.Infof("%d node(s) selected", len(nodes))

	batches, err := p.loadBatches(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	table, err := series.AssembleRaw(batches, series.AssembleOptions{
		AllowDuplicateTimes: cfg.AllowDuplicateTimes,
		Logger:              logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error assembling %s results: %w", cfg.ResultField, err)
	}

	timeout, err := cfg.NodeTimeoutDuration()
	if err != nil {
		return nil, err
	}

	report, err := batch.Run(ctx, table, nodes, cfg.Tcrit(), batch.Options{
		Workers:     cfg.Workers,
		NodeTimeout: timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	if p.Plots != nil && !cfg.Plot.Disabled {
		if err := p.writePlots(ctx, cfg, report, logger); err != nil {
			return report, err
		}
	}

	return report, nil
}

func (p *Pipeline) loadBatches(ctx context.Context, cfg *config.ConfigData, logger *zap.SugaredLogger) ([]types.RawBatch, error) {
	key := cache.Key{Study: p.StudyName, Field: cfg.ResultField}
	if rp, ok := p.Results.(interfaces.RevisionProvider); ok {
		rev, err := rp.ResultRevision(ctx)
		if err != nil {
			return nil, err
		}
		key.Revision = rev
	}

	if cfg.Cache.Enabled {
		batches, err := cache.Load(cfg.Cache.Path, key)
		switch {
		case err == nil:
			logger.Infof("loaded %d time step(s) from cache %s", len(batches), cfg.Cache.Path)
			return batches, nil
		case errors.Is(err, cache.ErrMiss):
			logger.Debugf("cache miss for %s", cfg.Cache.Path)
		default:
			logger.Warnf("ignoring unreadable cache %s: %v", cfg.Cache.Path, err)
		}
	}

	batches, err := interfaces.FetchBatches(ctx, p.Results, cfg.ResultField)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s results: %w", cfg.ResultField, err)
	}
	logger.Infof("fetched %d time step(s) of %s", len(batches), cfg.ResultField)

	if cfg.Cache.Enabled {
		if err := cache.Save(cfg.Cache.Path, key, batches); err != nil {
			logger.Warnf("could not write cache %s: %v", cfg.Cache.Path, err)
		}
	}
	return batches, nil
}

func (p *Pipeline) writePlots(ctx context.Context, cfg *config.ConfigData, report *batch.Report, logger *zap.SugaredLogger) error {
	if report.Stats.Count == 0 {
		logger.Warn("no node succeeded; skipping plots")
		return nil
	}

	plots := []interfaces.Plot{{
		Name:          fmt.Sprintf(cfg.Plot.TitleFormat, report.Stats.MeanExposure),
		DependentName: "fA",
		DependentUnit: constants.ExposureUnit,
		Values:        report.ExposureValues(),
	}}
	if cfg.Plot.TimeAbove {
		plots = append(plots, interfaces.Plot{
			Name:          fmt.Sprintf("ft-factor plot (average: %.2f s)", report.Stats.MeanTimeAbove),
			DependentName: "ft",
			DependentUnit: constants.TimeAboveUnit,
			Values:        report.TimeAboveValues(),
		})
	}

	for _, pl := range plots {
		if err := p.Plots.CreatePlot(ctx, pl); err != nil {
			return fmt.Errorf("error creating plot %q: %w", pl.Name, err)
		}
		logger.Infof("created plot %q", pl.Name)
	}

	if err := p.Plots.Save(ctx); err != nil {
		return fmt.Errorf("error saving study: %w", err)
	}
	return nil
}
