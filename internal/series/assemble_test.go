package series

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/thermexposure/internal/types"
)

func TestIsSentinel(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{"ordinary temperature", 231.5, false},
		{"zero", 0, false},
		{"negative temperature", -40, false},
		{"exactly threshold", 1e30, false},
		{"just above threshold", 1.0000001e30, true},
		{"large positive", 1e38, true},
		{"large negative", -1e38, true},
		{"NaN", math.NaN(), true},
		{"positive infinity", math.Inf(1), true},
		{"negative infinity", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSentinel(tt.value); got != tt.want {
				t.Errorf("IsSentinel(%g) = %v, want %v", tt.value, got, tt.want)
			}
			r := Normalize(tt.value)
			if r.Valid == tt.want {
				t.Errorf("Normalize(%g).Valid = %v, want %v", tt.value, r.Valid, !tt.want)
			}
			if r.Valid && r.Value != tt.value {
				t.Errorf("Normalize(%g) changed the value to %g", tt.value, r.Value)
			}
		})
	}
}

func TestAssembleRawSortsAndFillsMissing(t *testing.T) {
	batches := []types.RawBatch{
		{Time: 2.0, Nodes: []types.NodeID{1, 2}, Values: []float64{180, 190}},
		{Time: 0.5, Nodes: []types.NodeID{1}, Values: []float64{1e31}},
		{Time: 1.0, Nodes: []types.NodeID{2, 1, 3}, Values: []float64{200, 210, 5e35}},
	}

	table, err := AssembleRaw(batches, AssembleOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantTimes := []float64{0.5, 1.0, 2.0}
	gotTimes := table.Times()
	if len(gotTimes) != len(wantTimes) {
		t.Fatalf("expected %d times, got %d", len(wantTimes), len(gotTimes))
	}
	for i := range wantTimes {
		if gotTimes[i] != wantTimes[i] {
			t.Errorf("time %d: expected %g, got %g", i, wantTimes[i], gotTimes[i])
		}
	}

	nodes := table.Nodes()
	if len(nodes) != 3 || nodes[0] != 1 || nodes[1] != 2 || nodes[2] != 3 {
		t.Fatalf("unexpected nodes %v", nodes)
	}

	tests := []struct {
		node types.NodeID
		want []types.Reading
	}{
		{1, []types.Reading{types.None(), types.Some(210), types.Some(180)}},
		{2, []types.Reading{types.None(), types.Some(200), types.Some(190)}},
		{3, []types.Reading{types.None(), types.None(), types.None()}},
	}

	for _, tt := range tests {
		s, ok := table.Series(tt.node)
		if !ok {
			t.Fatalf("node %v missing from table", tt.node)
		}
		for i, r := range s.Temps {
			if r != tt.want[i] {
				t.Errorf("node %v step %d: expected %v, got %v", tt.node, i, tt.want[i], r)
			}
		}
	}
}

func TestAssembleTimesStrictlyIncreasing(t *testing.T) {
	samples := []types.TimeSample{
		{Time: 9, Values: map[types.NodeID]types.Reading{1: types.Some(1)}},
		{Time: 3, Values: map[types.NodeID]types.Reading{1: types.Some(2)}},
		{Time: 7, Values: map[types.NodeID]types.Reading{1: types.Some(3)}},
		{Time: 0, Values: map[types.NodeID]types.Reading{1: types.Some(4)}},
	}

	table, err := Assemble(samples, AssembleOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	times := table.Times()
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			t.Errorf("times not strictly increasing at %d: %v", i, times)
		}
	}
}

func TestAssembleNormalizesValidSentinels(t *testing.T) {
	samples := []types.TimeSample{
		{Time: 0, Values: map[types.NodeID]types.Reading{7: types.Some(2e30)}},
		{Time: 1, Values: map[types.NodeID]types.Reading{7: types.Some(150)}},
	}

	table, err := Assemble(samples, AssembleOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ := table.Series(7)
	if s.Temps[0].Valid {
		t.Errorf("expected sentinel at t=0 to be missing, got %v", s.Temps[0])
	}
	if !s.Temps[1].Valid || s.Temps[1].Value != 150 {
		t.Errorf("expected 150 at t=1, got %v", s.Temps[1])
	}
}

func TestAssembleDuplicateTimes(t *testing.T) {
	samples := []types.TimeSample{
		{Time: 1, Values: map[types.NodeID]types.Reading{1: types.Some(10)}},
		{Time: 1, Values: map[types.NodeID]types.Reading{1: types.Some(20)}},
	}

	_, err := Assemble(samples, AssembleOptions{})
	var die *DataIntegrityError
	if !errors.As(err, &die) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}

	table, err := Assemble(samples, AssembleOptions{AllowDuplicateTimes: true})
	if err != nil {
		t.Fatalf("unexpected error with duplicates allowed: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", table.Len())
	}
	s, _ := table.Series(1)
	if s.Temps[0].Value != 20 {
		t.Errorf("expected last write (20) to win, got %v", s.Temps[0])
	}
}

func TestAssembleIntegrityErrors(t *testing.T) {
	tests := []struct {
		name  string
		batch types.RawBatch
	}{
		{"negative time", types.RawBatch{Time: -1, Nodes: []types.NodeID{1}, Values: []float64{1}}},
		{"NaN time", types.RawBatch{Time: math.NaN(), Nodes: []types.NodeID{1}, Values: []float64{1}}},
		{"length mismatch", types.RawBatch{Time: 1, Nodes: []types.NodeID{1, 2}, Values: []float64{1}}},
		{"negative node", types.RawBatch{Time: 1, Nodes: []types.NodeID{-4}, Values: []float64{1}}},
		{"conflicting node values", types.RawBatch{Time: 1, Nodes: []types.NodeID{3, 3}, Values: []float64{1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssembleRaw([]types.RawBatch{tt.batch}, AssembleOptions{})
			var die *DataIntegrityError
			if !errors.As(err, &die) {
				t.Fatalf("expected DataIntegrityError, got %v", err)
			}
		})
	}
}

func TestTableSelectAndDropEmptyRows(t *testing.T) {
	batches := []types.RawBatch{
		{Time: 0, Nodes: []types.NodeID{1, 2}, Values: []float64{1e31, 1e31}},
		{Time: 1, Nodes: []types.NodeID{1, 2}, Values: []float64{1e31, 300}},
		{Time: 2, Nodes: []types.NodeID{1, 2}, Values: []float64{250, 280}},
	}
	table, err := AssembleRaw(batches, AssembleOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sel := table.Select([]types.NodeID{1, 99, 1})
	if got := sel.Nodes(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only node 1 selected, got %v", got)
	}
	if sel.Has(2) {
		t.Errorf("node 2 should not be in the selection")
	}

	dropped := sel.DropEmptyRows()
	if dropped.Len() != 1 {
		t.Fatalf("expected 1 row after dropping empty rows, got %d", dropped.Len())
	}
	if dropped.Times()[0] != 2 {
		t.Errorf("expected remaining row at t=2, got %v", dropped.Times())
	}

	full := table.DropEmptyRows()
	if full.Len() != 2 {
		t.Errorf("expected 2 rows for both nodes, got %d", full.Len())
	}
}
