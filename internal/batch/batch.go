// Package batch solves many nodes of an assembled table concurrently and
// collects per-node failures instead of aborting the run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/thermexposure/internal/exposure"
	"github.com/chrissnell/thermexposure/internal/series"
	"github.com/chrissnell/thermexposure/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FailureKind classifies a per-node failure
type FailureKind string

const (
	KindInsufficientData FailureKind = "insufficient_data"
	KindNoCrossing       FailureKind = "no_crossing"
	KindConvergence      FailureKind = "convergence"
	KindTimeout          FailureKind = "timeout"
	KindOther            FailureKind = "other"
)

// TimeoutError means a node did not finish within Options.NodeTimeout
type TimeoutError struct {
	Node    types.NodeID
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("node %v: solve exceeded %v", e.Node, e.Timeout)
}

// Classify maps a solver error onto a FailureKind
func Classify(err error) FailureKind {
	var (
		ide *exposure.InsufficientDataError
		nce *exposure.NoCrossingError
		ce  *exposure.ConvergenceError
		te  *TimeoutError
	)
	switch {
	case errors.As(err, &ide):
		return KindInsufficientData
	case errors.As(err, &nce):
		return KindNoCrossing
	case errors.As(err, &ce):
		return KindConvergence
	case errors.As(err, &te):
		return KindTimeout
	default:
		return KindOther
	}
}

// NodeSolver computes the exposure of one node. *exposure.Solver implements it.
type NodeSolver interface {
	Solve(s types.NodeTimeSeries, criticalTemp float64) (types.ExposureResult, error)
}

// Options tunes a batch run
type Options struct {
	// Workers bounds the number of nodes solved at once. 0 means GOMAXPROCS.
	Workers int

	// NodeTimeout limits each node's solve. 0 disables the limit.
	NodeTimeout time.Duration

	Solver NodeSolver
	Logger *zap.SugaredLogger
}

// Run solves every requested node of table against criticalTemp. Per-node
// errors end up in Report.Failures; only cancellation of ctx aborts the run.
func Run(ctx context.Context, table *series.Table, nodes []types.NodeID, criticalTemp float64, opts Options) (*Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Solver == nil {
		opts.Solver = exposure.NewSolver(exposure.DefaultOptions())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	report := &Report{
		RunID:        uuid.New().String(),
		CriticalTemp: criticalTemp,
		StartedAt:    time.Now(),
	}

	requested := dedupe(nodes)
	view := table.Select(requested).DropEmptyRows()

	logger.Infof("run %s: solving %d node(s) over %d time step(s) with %d worker(s), Tcrit=%g",
		report.RunID, len(requested), view.Len(), opts.Workers, criticalTemp)

	var mu sync.Mutex
	record := func(res types.ExposureResult, err error, node types.NodeID) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			f := Failure{Node: node, Kind: Classify(err), Message: err.Error()}
			logger.Debugf("node %v failed (%s): %v", node, f.Kind, err)
			report.Failures = append(report.Failures, f)
			return
		}
		report.Results = append(report.Results, res)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, node := range requested {
		node := node
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			s, ok := view.Series(node)
			if !ok {
				record(types.ExposureResult{}, &exposure.InsufficientDataError{Node: node}, node)
				return nil
			}

			res, err := solveNode(gctx, opts, s, criticalTemp)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			record(res, err, node)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Node < report.Results[j].Node })
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Node < report.Failures[j].Node })
	report.Stats = computeStats(report.Results)
	report.FinishedAt = time.Now()

	logger.Infof("run %s: %d succeeded, %d failed, mean fA %.2f",
		report.RunID, len(report.Results), len(report.Failures), report.Stats.MeanExposure)

	return report, nil
}

func solveNode(ctx context.Context, opts Options, s types.NodeTimeSeries, criticalTemp float64) (types.ExposureResult, error) {
	if opts.NodeTimeout <= 0 {
		return opts.Solver.Solve(s, criticalTemp)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.NodeTimeout)
	defer cancel()

	type outcome struct {
		res types.ExposureResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := opts.Solver.Solve(s, criticalTemp)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.ExposureResult{}, &TimeoutError{Node: s.Node, Timeout: opts.NodeTimeout}
		}
		return types.ExposureResult{}, ctx.Err()
	}
}

func dedupe(nodes []types.NodeID) []types.NodeID {
	seen := make(map[types.NodeID]struct{}, len(nodes))
	out := make([]types.NodeID, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
