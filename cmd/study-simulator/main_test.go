package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chrissnell/thermexposure/internal/interfaces"
	"github.com/chrissnell/thermexposure/internal/study"
)

func TestProfileTemperature(t *testing.T) {
	p := nodeProfile{arrival: 2, melt: 250, ambient: 50, rate: 10}
	if got := p.temperature(1); got != sentinel {
		t.Errorf("expected sentinel before arrival, got %g", got)
	}
	if got := p.temperature(4); got != 230 {
		t.Errorf("expected 230 two seconds after arrival, got %g", got)
	}
	if got := p.temperature(100); got != 50 {
		t.Errorf("expected ambient floor, got %g", got)
	}
}

func TestRunWritesStudy(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sim.db")

	if err := run(ctx, path, "Temperature", 8, 500, 10, 0.5, 3, 7, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := study.OpenFile(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()

	nodes, err := st.SelectedNodes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 3 {
		t.Errorf("expected 3 selected nodes, got %v", nodes)
	}

	batches, err := interfaces.FetchBatches(ctx, st, "Temperature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 10 || len(batches[0].Values) != 8 {
		t.Fatalf("unexpected shape: %d steps", len(batches))
	}
	// Only the first node has been reached by the melt at t=0
	if batches[0].Values[0] == sentinel || batches[0].Values[7] != sentinel {
		t.Errorf("unexpected first step %v", batches[0].Values)
	}
}

func TestRunResetReplacesStudy(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sim.db")

	if err := run(ctx, path, "Temperature", 8, 500, 10, 0.5, 3, 7, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Rewriting without a reset would append to the old batches
	if err := run(ctx, path, "Temperature", 4, 900, 6, 0.5, 2, 7, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := study.OpenFile(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()

	batches, err := interfaces.FetchBatches(ctx, st, "Temperature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 6 || len(batches[0].Values) != 4 || batches[0].Nodes[0] != 900 {
		t.Errorf("expected only the second simulation, got %d steps", len(batches))
	}
	nodes, err := st.SelectedNodes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("expected 2 selected nodes, got %v", nodes)
	}
}
