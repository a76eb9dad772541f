// Package types holds the data model shared by the assembler, the solver and
// the collaborators that feed them.
package types

import (
	"fmt"
	"strconv"
)

// NodeID identifies a mesh node. It is stable across the time steps of one study.
type NodeID int64

// String renders the node the way the study selection list does (N123)
func (n NodeID) String() string {
	return "N" + strconv.FormatInt(int64(n), 10)
}

// Reading is an optional temperature sample. Valid is false when the node had
// no reading at that time (melt front not arrived, or absent from the batch).
type Reading struct {
	Value float64 `json:"value" msgpack:"value"`
	Valid bool    `json:"valid" msgpack:"valid"`
}

// Some returns a valid reading
func Some(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// None returns a missing reading
func None() Reading {
	return Reading{}
}

func (r Reading) String() string {
	if !r.Valid {
		return "-"
	}
	return strconv.FormatFloat(r.Value, 'g', -1, 64)
}

// TimeSample is one time step of normalized nodal results
type TimeSample struct {
	Time   float64            `json:"time" msgpack:"time"`
	Values map[NodeID]Reading `json:"values" msgpack:"values"`
}

// RawBatch is one time step exactly as the result provider delivered it:
// parallel node and value arrays, sentinels still in place.
type RawBatch struct {
	Time   float64   `json:"time" msgpack:"time"`
	Nodes  []NodeID  `json:"nodes" msgpack:"nodes"`
	Values []float64 `json:"values" msgpack:"values"`
}

// NodeTimeSeries is the temperature history of one node, ordered by strictly
// increasing time. Temps[i] belongs to Times[i].
type NodeTimeSeries struct {
	Node  NodeID
	Times []float64
	Temps []Reading
}

// Len returns the number of time steps, missing or not
func (s NodeTimeSeries) Len() int {
	return len(s.Times)
}

// ValidKnots returns the times and temperatures of the valid samples only
func (s NodeTimeSeries) ValidKnots() (times, temps []float64) {
	for i, r := range s.Temps {
		if !r.Valid {
			continue
		}
		times = append(times, s.Times[i])
		temps = append(temps, r.Value)
	}
	return times, temps
}

// ExposureResult holds the two thermal-exposure factors of one node
type ExposureResult struct {
	Node NodeID `json:"node" msgpack:"node"`

	// TimeAboveCritical (ft) is the time in seconds between melt contact and
	// the crossing of the critical temperature
	TimeAboveCritical float64 `json:"time_above_critical" msgpack:"time_above_critical"`

	// IntegratedExposure (fA) is the integral of T(t)-Tcrit over the same
	// interval, in temperature-unit * seconds
	IntegratedExposure float64 `json:"integrated_exposure" msgpack:"integrated_exposure"`

	MeltContactTime float64 `json:"melt_contact_time" msgpack:"melt_contact_time"`
	CrossingTime    float64 `json:"crossing_time" msgpack:"crossing_time"`
	CycleEndTime    float64 `json:"cycle_end_time" msgpack:"cycle_end_time"`
}

func (r ExposureResult) String() string {
	return fmt.Sprintf("%v: ft=%.4g s fA=%.4g K*s", r.Node, r.TimeAboveCritical, r.IntegratedExposure)
}
