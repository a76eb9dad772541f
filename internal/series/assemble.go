// Package series turns the per-time-step batches delivered by the simulation
// into a node-indexed table of time series.
package series

import (
	"math"
	"sort"

	"github.com/chrissnell/thermexposure/internal/types"
	"go.uber.org/zap"
)

// AssembleOptions tunes Assemble
type AssembleOptions struct {
	// AllowDuplicateTimes keeps the last batch of a repeated time step instead
	// of failing. Every duplicate is still logged.
	AllowDuplicateTimes bool

	Logger *zap.SugaredLogger
}

// FromRaw converts a provider batch into a normalized time sample. Sentinel
// values become missing readings here, before any merging takes place.
func FromRaw(b types.RawBatch) (types.TimeSample, error) {
	if err := checkTime(b.Time); err != nil {
		return types.TimeSample{}, err
	}
	if len(b.Nodes) != len(b.Values) {
		return types.TimeSample{}, &DataIntegrityError{
			Time:   b.Time,
			Reason: "node and value arrays differ in length",
		}
	}

	values := make(map[types.NodeID]types.Reading, len(b.Nodes))
	for i, n := range b.Nodes {
		if n < 0 {
			return types.TimeSample{}, &DataIntegrityError{Time: b.Time, Reason: "negative node id " + n.String()}
		}
		r := Normalize(b.Values[i])
		if prev, seen := values[n]; seen && prev != r {
			return types.TimeSample{}, &DataIntegrityError{
				Time:   b.Time,
				Reason: "node " + n.String() + " reported twice with different values",
			}
		}
		values[n] = r
	}

	return types.TimeSample{Time: b.Time, Values: values}, nil
}

// AssembleRaw normalizes every provider batch and assembles the result
func AssembleRaw(batches []types.RawBatch, opts AssembleOptions) (*Table, error) {
	samples := make([]types.TimeSample, 0, len(batches))
	for _, b := range batches {
		s, err := FromRaw(b)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return Assemble(samples, opts)
}

// Assemble builds the table from time samples. Every node seen in any sample
// gets a column; time steps where it is absent or flagged are missing.
func Assemble(samples []types.TimeSample, opts AssembleOptions) (*Table, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ordered := make([]types.TimeSample, 0, len(samples))
	for _, s := range samples {
		if err := checkTime(s.Time); err != nil {
			return nil, err
		}
		norm := make(map[types.NodeID]types.Reading, len(s.Values))
		for n, r := range s.Values {
			if n < 0 {
				return nil, &DataIntegrityError{Time: s.Time, Reason: "negative node id " + n.String()}
			}
			norm[n] = normalizeReading(r)
		}
		ordered = append(ordered, types.TimeSample{Time: s.Time, Values: norm})
	}

	// Stable so that "last write wins" refers to input order
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Time < ordered[j].Time })

	deduped := make([]types.TimeSample, 0, len(ordered))
	for _, s := range ordered {
		if last := len(deduped) - 1; last >= 0 && deduped[last].Time == s.Time {
			if !opts.AllowDuplicateTimes {
				return nil, &DataIntegrityError{Time: s.Time, Reason: "duplicate time step"}
			}
			logger.Warnf("duplicate time step %g; keeping the last batch", s.Time)
			deduped[last] = s
			continue
		}
		deduped = append(deduped, s)
	}

	nodeSet := make(map[types.NodeID]struct{})
	for _, s := range deduped {
		for n := range s.Values {
			nodeSet[n] = struct{}{}
		}
	}

	t := &Table{
		times:   make([]float64, len(deduped)),
		nodes:   make([]types.NodeID, 0, len(nodeSet)),
		columns: make(map[types.NodeID][]types.Reading, len(nodeSet)),
	}
	for n := range nodeSet {
		t.nodes = append(t.nodes, n)
		t.columns[n] = make([]types.Reading, len(deduped))
	}
	sortNodes(t.nodes)

	for i, s := range deduped {
		t.times[i] = s.Time
		for n, r := range s.Values {
			t.columns[n][i] = r
		}
	}

	logger.Debugf("assembled %d time steps x %d nodes", len(t.times), len(t.nodes))
	return t, nil
}

func checkTime(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return &DataIntegrityError{Time: t, Reason: "time is not finite"}
	}
	if t < 0 {
		return &DataIntegrityError{Time: t, Reason: "negative time"}
	}
	return nil
}
