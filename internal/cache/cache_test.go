package cache

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chrissnell/thermexposure/internal/types"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodal.msgpack")
	key := Key{Study: "part.db", Field: "Temperature"}

	batches := []types.RawBatch{
		{Time: 0, Nodes: []types.NodeID{1, 2}, Values: []float64{1e31, 230}},
		{Time: 0.5, Nodes: []types.NodeID{1, 2}, Values: []float64{221.5, math.NaN()}},
	}

	if err := Save(path, key, batches); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := Load(path, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(got))
	}
	if got[0].Values[0] != 1e31 || got[1].Time != 0.5 || got[1].Nodes[1] != 2 {
		t.Errorf("unexpected batches %+v", got)
	}
	if !math.IsNaN(got[1].Values[1]) {
		t.Errorf("expected NaN to survive the cache, got %g", got[1].Values[1])
	}
}

func TestLoadMiss(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodal.msgpack")

	if _, err := Load(path, Key{Study: "a", Field: "Temperature"}); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss for missing file, got %v", err)
	}

	if err := Save(path, Key{Study: "a", Field: "Temperature"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, Key{Study: "a", Field: "Pressure"}); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss for another field, got %v", err)
	}
	if _, err := Load(path, Key{Study: "b", Field: "Temperature"}); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss for another study, got %v", err)
	}

	if err := os.WriteFile(path, []byte{0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, Key{Study: "a", Field: "Temperature"}); err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("expected a decode error for a corrupt file, got %v", err)
	}
}

func TestLoadMissesRewrittenResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodal.msgpack")
	old := Key{Study: "part.db", Field: "Temperature", Revision: "r1"}

	if err := Save(path, old, []types.RawBatch{{Time: 0, Nodes: []types.NodeID{1}, Values: []float64{230}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, old); err != nil {
		t.Fatalf("expected a hit for the same revision, got %v", err)
	}

	resimulated := old
	resimulated.Revision = "r2"
	if _, err := Load(path, resimulated); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after the results changed, got %v", err)
	}
}
