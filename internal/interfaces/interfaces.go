// Package interfaces defines the capabilities the exposure pipeline needs from
// the simulation tool: a node selection, nodal results and a plot sink.
package interfaces

import (
	"context"
	"fmt"
	"sort"

	"github.com/chrissnell/thermexposure/internal/types"
)

// SelectionProvider returns the nodes the user picked for analysis
type SelectionProvider interface {
	SelectedNodes(ctx context.Context) ([]types.NodeID, error)
}

// ResultProvider hands out sessions against the study results. A session is
// scoped: callers must Close it as soon as their queries are done and must not
// reuse it afterwards.
type ResultProvider interface {
	Open(ctx context.Context) (ResultSession, error)
}

// ResultSession queries one result field of an open study
type ResultSession interface {
	// TimeSteps returns the independent (time) values recorded for field
	TimeSteps(ctx context.Context, field string) ([]float64, error)

	// ScalarData returns the raw nodal values of field at time t. Values are
	// delivered as stored, unfilled sentinels included.
	ScalarData(ctx context.Context, field string, t float64) (types.RawBatch, error)

	Close() error
}

// RevisionProvider is implemented by result providers that can tell when their
// stored results last changed. The revision is opaque; any write yields a new one.
type RevisionProvider interface {
	ResultRevision(ctx context.Context) (string, error)
}

// Plot describes a single-scalar nodal contour plot
type Plot struct {
	Name            string
	IndependentName string
	DependentName   string
	DependentUnit   string
	Values          map[types.NodeID]float64
}

// PlotSink renders plots into the active study and persists it
type PlotSink interface {
	CreatePlot(ctx context.Context, p Plot) error
	Save(ctx context.Context) error
}

// FetchBatches opens a session, pulls every time step of field in ascending
// order and closes the session before returning
func FetchBatches(ctx context.Context, provider ResultProvider, field string) (batches []types.RawBatch, err error) {
	session, err := provider.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open result session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close result session: %w", cerr)
		}
	}()

	steps, err := session.TimeSteps(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("failed to list time steps for %q: %w", field, err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("result field %q has no time steps", field)
	}
	sort.Float64s(steps)

	batches = make([]types.RawBatch, 0, len(steps))
	for _, t := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := session.ScalarData(ctx, field, t)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %q at t=%g: %w", field, t, err)
		}
		batches = append(batches, b)
	}

	return batches, nil
}
