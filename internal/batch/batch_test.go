package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/thermexposure/internal/exposure"
	"github.com/chrissnell/thermexposure/internal/series"
	"github.com/chrissnell/thermexposure/internal/types"
)

const (
	nodeA types.NodeID = 1
	nodeB types.NodeID = 2
	nodeC types.NodeID = 3
)

// scenarioTable builds the three-node study: A cools linearly from 200 by
// 10 per second, B sits at 50, C has a single valid reading.
func scenarioTable(t *testing.T) *series.Table {
	t.Helper()

	var batches []types.RawBatch
	for i := 0; i <= 30; i++ {
		tm := float64(i)
		cValue := 1e31
		if i == 12 {
			cValue = 210
		}
		batches = append(batches, types.RawBatch{
			Time:   tm,
			Nodes:  []types.NodeID{nodeA, nodeB, nodeC},
			Values: []float64{200 - 10*tm, 50, cValue},
		})
	}

	table, err := series.AssembleRaw(batches, series.AssembleOptions{})
	if err != nil {
		t.Fatalf("failed to assemble scenario: %v", err)
	}
	return table
}

func TestRunEndToEndScenario(t *testing.T) {
	table := scenarioTable(t)

	report, err := Run(context.Background(), table, []types.NodeID{nodeA, nodeB, nodeC}, 140, Options{Workers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("expected 1 success, got %d", len(report.Results))
	}
	a, ok := report.Result(nodeA)
	if !ok {
		t.Fatal("node A missing from results")
	}
	if math.Abs(a.CrossingTime-6) > 1e-9 {
		t.Errorf("node A: expected t_cross=6, got %.12f", a.CrossingTime)
	}
	if math.Abs(a.TimeAboveCritical-6) > 1e-9 {
		t.Errorf("node A: expected ft=6, got %.12f", a.TimeAboveCritical)
	}
	if math.Abs(a.IntegratedExposure-180) > 1e-6 {
		t.Errorf("node A: expected fA=180, got %.12f", a.IntegratedExposure)
	}

	tests := []struct {
		node types.NodeID
		kind FailureKind
	}{
		{nodeB, KindNoCrossing},
		{nodeC, KindInsufficientData},
	}
	for _, tt := range tests {
		f, ok := report.Failure(tt.node)
		if !ok {
			t.Errorf("node %v: expected a failure", tt.node)
			continue
		}
		if f.Kind != tt.kind {
			t.Errorf("node %v: expected %s, got %s", tt.node, tt.kind, f.Kind)
		}
	}

	if report.Stats.Count != 1 || math.Abs(report.Stats.MeanExposure-180) > 1e-6 {
		t.Errorf("expected mean exposure 180 over 1 node, got %+v", report.Stats)
	}
	if report.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRunUnknownNodeIsInsufficientData(t *testing.T) {
	report, err := Run(context.Background(), scenarioTable(t), []types.NodeID{nodeA, 999, nodeA}, 140, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 1 {
		t.Errorf("expected duplicate request to be solved once, got %d results", len(report.Results))
	}
	f, ok := report.Failure(999)
	if !ok || f.Kind != KindInsufficientData {
		t.Errorf("expected insufficient_data for unknown node, got %+v (found=%v)", f, ok)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, scenarioTable(t), []types.NodeID{nodeA, nodeB}, 140, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type slowSolver struct {
	delay time.Duration
}

func (s slowSolver) Solve(series types.NodeTimeSeries, criticalTemp float64) (types.ExposureResult, error) {
	time.Sleep(s.delay)
	return exposure.Solve(series, criticalTemp)
}

func TestRunNodeTimeout(t *testing.T) {
	report, err := Run(context.Background(), scenarioTable(t), []types.NodeID{nodeA}, 140, Options{
		NodeTimeout: 10 * time.Millisecond,
		Solver:      slowSolver{delay: 500 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := report.Failure(nodeA)
	if !ok || f.Kind != KindTimeout {
		t.Fatalf("expected timeout failure, got %+v (found=%v)", f, ok)
	}
	if report.Stats.Count != 0 {
		t.Errorf("timed out nodes must not count in stats: %+v", report.Stats)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{&exposure.InsufficientDataError{}, KindInsufficientData},
		{fmt.Errorf("wrapped: %w", &exposure.NoCrossingError{}), KindNoCrossing},
		{&exposure.ConvergenceError{}, KindConvergence},
		{&TimeoutError{}, KindTimeout},
		{errors.New("disk on fire"), KindOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	report, err := Run(context.Background(), scenarioTable(t), []types.NodeID{nodeA, nodeB, nodeC}, 140, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := report.WriteSummary(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Succeeded: 1 node(s)",
		"Failed:    2 node(s)",
		"insufficient_data (1): N3",
		"no_crossing (1): N2",
		"Mean fA over successes: 180.00 K*s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	report, err := Run(context.Background(), scenarioTable(t), []types.NodeID{nodeA, nodeB}, 140, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[1], "N1,ok,6.000000,180.000000") {
		t.Errorf("unexpected row for node A: %s", lines[1])
	}
	if !strings.HasPrefix(lines[2], "N2,no_crossing") {
		t.Errorf("unexpected row for node B: %s", lines[2])
	}
}

func TestComputeStats(t *testing.T) {
	s := computeStats([]types.ExposureResult{
		{IntegratedExposure: 10, TimeAboveCritical: 1},
		{IntegratedExposure: 20, TimeAboveCritical: 3},
		{IntegratedExposure: 30, TimeAboveCritical: 5},
	})
	if s.Count != 3 || s.MeanExposure != 20 || s.MinExposure != 10 || s.MaxExposure != 30 {
		t.Errorf("unexpected stats %+v", s)
	}
	if math.Abs(s.StdDevExposure-10) > 1e-12 {
		t.Errorf("expected sample std dev 10, got %g", s.StdDevExposure)
	}
	if s.MeanTimeAbove != 3 || s.MaxTimeAbove != 5 {
		t.Errorf("unexpected ft stats %+v", s)
	}

	if empty := computeStats(nil); empty.Count != 0 {
		t.Errorf("expected empty stats, got %+v", empty)
	}
}
