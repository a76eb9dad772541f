// Package exposure computes the thermal-exposure factors of a single node:
// the time its temperature stays above a critical threshold (ft) and the
// time integral of the excess temperature over that interval (fA).
package exposure

import (
	"errors"
	"math"

	"github.com/chrissnell/thermexposure/internal/types"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/interp"
)

// Options controls the numerical methods used by a Solver
type Options struct {
	// XTol and RTol bound the crossing-time error: |t - t*| <= XTol + RTol*|t*|
	XTol float64
	RTol float64

	// MaxIter caps the root-finder iterations
	MaxIter int

	// QuadratureNodes is the Gauss-Legendre order used on each interval between
	// knots. Any order >= 1 integrates the linear pieces exactly.
	QuadratureNodes int
}

// DefaultOptions returns tolerances tight enough for seconds-scale cycles
func DefaultOptions() Options {
	return Options{
		XTol:            2e-12,
		RTol:            4 * 2.220446049250313e-16,
		MaxIter:         100,
		QuadratureNodes: 3,
	}
}

// Solver computes ExposureResults. It holds no per-call state and is safe for
// concurrent use.
type Solver struct {
	opts Options
}

// NewSolver creates a Solver, filling unset options with defaults
func NewSolver(opts Options) *Solver {
	def := DefaultOptions()
	if opts.XTol <= 0 {
		opts.XTol = def.XTol
	}
	if opts.RTol <= 0 {
		opts.RTol = def.RTol
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = def.MaxIter
	}
	if opts.QuadratureNodes <= 0 {
		opts.QuadratureNodes = def.QuadratureNodes
	}
	return &Solver{opts: opts}
}

var defaultSolver = NewSolver(DefaultOptions())

// Solve computes the exposure factors of one series with default options
func Solve(series types.NodeTimeSeries, criticalTemp float64) (types.ExposureResult, error) {
	return defaultSolver.Solve(series, criticalTemp)
}

// Solve computes ft and fA for series against criticalTemp.
//
// Missing readings are dropped; the first and last valid times bound the
// search (melt contact and cycle end). The crossing is located on the
// piecewise-linear interpolant of the valid samples.
func (s *Solver) Solve(series types.NodeTimeSeries, criticalTemp float64) (types.ExposureResult, error) {
	if math.IsNaN(criticalTemp) || math.IsInf(criticalTemp, 0) {
		return types.ExposureResult{}, ErrInvalidCriticalTemperature
	}

	times, temps := series.ValidKnots()
	if len(times) < 2 {
		return types.ExposureResult{}, &InsufficientDataError{Node: series.Node, Valid: len(times)}
	}

	excess := make([]float64, len(temps))
	for i, v := range temps {
		excess[i] = v - criticalTemp
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(times, excess); err != nil {
		return types.ExposureResult{}, err
	}
	f := pl.Predict

	t0, t1 := times[0], times[len(times)-1]

	tCross, iters, err := brentq(f, t0, t1, s.opts.XTol, s.opts.RTol, s.opts.MaxIter)
	switch {
	case errors.Is(err, errNoBracket):
		return types.ExposureResult{}, &NoCrossingError{
			Node:         series.Node,
			CriticalTemp: criticalTemp,
			StartTemp:    temps[0],
			EndTemp:      temps[len(temps)-1],
		}
	case errors.Is(err, errNotConverged):
		return types.ExposureResult{}, &ConvergenceError{Node: series.Node, Iterations: iters, Estimate: tCross}
	case err != nil:
		return types.ExposureResult{}, err
	}

	return types.ExposureResult{
		Node:               series.Node,
		TimeAboveCritical:  tCross - t0,
		IntegratedExposure: s.integrate(f, times, t0, tCross),
		MeltContactTime:    t0,
		CrossingTime:       tCross,
		CycleEndTime:       t1,
	}, nil
}

// integrate sums a fixed Gauss-Legendre rule over every knot interval that
// intersects [a, b], so no panel straddles a kink of the interpolant
func (s *Solver) integrate(f func(float64) float64, knots []float64, a, b float64) float64 {
	if b <= a {
		return 0
	}

	total := 0.0
	lo := a
	for _, k := range knots {
		if k <= lo {
			continue
		}
		hi := math.Min(k, b)
		total += quad.Fixed(f, lo, hi, s.opts.QuadratureNodes, quad.Legendre{}, 0)
		lo = hi
		if lo >= b {
			break
		}
	}
	return total
}
