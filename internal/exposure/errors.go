package exposure

import (
	"errors"
	"fmt"

	"github.com/chrissnell/thermexposure/internal/types"
)

// ErrInvalidCriticalTemperature is returned for a NaN or infinite threshold
var ErrInvalidCriticalTemperature = errors.New("critical temperature must be finite")

// InsufficientDataError means fewer than two valid samples were left once the
// missing readings were dropped
type InsufficientDataError struct {
	Node  types.NodeID
	Valid int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("node %v: insufficient data: %d valid sample(s), need at least 2", e.Node, e.Valid)
}

// NoCrossingError means T(t)-Tcrit has the same sign at melt contact and at
// cycle end, so the bracket holds no root
type NoCrossingError struct {
	Node         types.NodeID
	CriticalTemp float64
	StartTemp    float64
	EndTemp      float64
}

func (e *NoCrossingError) Error() string {
	return fmt.Sprintf("node %v: temperature does not cross %g (%g at melt contact, %g at cycle end)",
		e.Node, e.CriticalTemp, e.StartTemp, e.EndTemp)
}

// ConvergenceError means the root finder ran out of iterations
type ConvergenceError struct {
	Node       types.NodeID
	Iterations int
	Estimate   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("node %v: root finder did not converge after %d iterations (last estimate %g)",
		e.Node, e.Iterations, e.Estimate)
}
