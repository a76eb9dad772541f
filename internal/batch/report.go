package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/thermexposure/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Failure records why one node could not be solved
type Failure struct {
	Node    types.NodeID `json:"node" msgpack:"node"`
	Kind    FailureKind  `json:"kind" msgpack:"kind"`
	Message string       `json:"message" msgpack:"message"`
}

// Stats aggregates the successful nodes only
type Stats struct {
	Count          int     `json:"count" msgpack:"count"`
	MeanExposure   float64 `json:"mean_exposure" msgpack:"mean_exposure"`
	StdDevExposure float64 `json:"stddev_exposure" msgpack:"stddev_exposure"`
	MinExposure    float64 `json:"min_exposure" msgpack:"min_exposure"`
	MaxExposure    float64 `json:"max_exposure" msgpack:"max_exposure"`
	MeanTimeAbove  float64 `json:"mean_time_above" msgpack:"mean_time_above"`
	MaxTimeAbove   float64 `json:"max_time_above" msgpack:"max_time_above"`
}

// Report is the outcome of one batch run
type Report struct {
	RunID        string                 `json:"run_id" msgpack:"run_id"`
	CriticalTemp float64                `json:"critical_temperature" msgpack:"critical_temperature"`
	StartedAt    time.Time              `json:"started_at" msgpack:"started_at"`
	FinishedAt   time.Time              `json:"finished_at" msgpack:"finished_at"`
	Results      []types.ExposureResult `json:"results" msgpack:"results"`
	Failures     []Failure              `json:"failures" msgpack:"failures"`
	Stats        Stats                  `json:"stats" msgpack:"stats"`
}

// Result looks up the result of one node
func (r *Report) Result(node types.NodeID) (types.ExposureResult, bool) {
	i := sort.Search(len(r.Results), func(i int) bool { return r.Results[i].Node >= node })
	if i < len(r.Results) && r.Results[i].Node == node {
		return r.Results[i], true
	}
	return types.ExposureResult{}, false
}

// Failure looks up the failure of one node
func (r *Report) Failure(node types.NodeID) (Failure, bool) {
	for _, f := range r.Failures {
		if f.Node == node {
			return f, true
		}
	}
	return Failure{}, false
}

// FailuresByKind groups the failures, node order preserved within a kind
func (r *Report) FailuresByKind() map[FailureKind][]Failure {
	out := make(map[FailureKind][]Failure)
	for _, f := range r.Failures {
		out[f.Kind] = append(out[f.Kind], f)
	}
	return out
}

// ExposureValues maps every solved node to its fA
func (r *Report) ExposureValues() map[types.NodeID]float64 {
	out := make(map[types.NodeID]float64, len(r.Results))
	for _, res := range r.Results {
		out[res.Node] = res.IntegratedExposure
	}
	return out
}

// TimeAboveValues maps every solved node to its ft
func (r *Report) TimeAboveValues() map[types.NodeID]float64 {
	out := make(map[types.NodeID]float64, len(r.Results))
	for _, res := range r.Results {
		out[res.Node] = res.TimeAboveCritical
	}
	return out
}

func computeStats(results []types.ExposureResult) Stats {
	if len(results) == 0 {
		return Stats{}
	}

	fa := make([]float64, len(results))
	ft := make([]float64, len(results))
	for i, r := range results {
		fa[i] = r.IntegratedExposure
		ft[i] = r.TimeAboveCritical
	}

	s := Stats{
		Count:         len(results),
		MeanExposure:  stat.Mean(fa, nil),
		MinExposure:   floats.Min(fa),
		MaxExposure:   floats.Max(fa),
		MeanTimeAbove: stat.Mean(ft, nil),
		MaxTimeAbove:  floats.Max(ft),
	}
	if len(fa) > 1 {
		s.StdDevExposure = stat.StdDev(fa, nil)
	}
	return s
}

// WriteSummary prints the user-facing run summary: successes, failures
// grouped by kind and the aggregate exposure over the successes
func (r *Report) WriteSummary(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s (critical temperature %g)\n", r.RunID, r.CriticalTemp)
	fmt.Fprintf(&b, "Succeeded: %d node(s)\n", len(r.Results))
	fmt.Fprintf(&b, "Failed:    %d node(s)\n", len(r.Failures))

	groups := r.FailuresByKind()
	kinds := make([]string, 0, len(groups))
	for k := range groups {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fs := groups[FailureKind(k)]
		ids := make([]string, len(fs))
		for i, f := range fs {
			ids[i] = f.Node.String()
		}
		fmt.Fprintf(&b, "  %s (%d): %s\n", k, len(fs), strings.Join(ids, " "))
	}

	if r.Stats.Count > 0 {
		fmt.Fprintf(&b, "Mean fA over successes: %.2f K*s (min %.2f, max %.2f, std dev %.2f)\n",
			r.Stats.MeanExposure, r.Stats.MinExposure, r.Stats.MaxExposure, r.Stats.StdDevExposure)
		fmt.Fprintf(&b, "Mean ft over successes: %.2f s\n", r.Stats.MeanTimeAbove)
	} else {
		b.WriteString("No node was solved; no aggregate available\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteCSV writes one row per requested node, solved or not
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"node", "status", "ft_s", "fa_ks", "melt_contact_s", "crossing_s", "cycle_end_s", "reason"}); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

	for _, res := range r.Results {
		if err := cw.Write([]string{
			res.Node.String(), "ok",
			ff(res.TimeAboveCritical), ff(res.IntegratedExposure),
			ff(res.MeltContactTime), ff(res.CrossingTime), ff(res.CycleEndTime), "",
		}); err != nil {
			return err
		}
	}
	for _, f := range r.Failures {
		if err := cw.Write([]string{f.Node.String(), string(f.Kind), "", "", "", "", "", f.Message}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
