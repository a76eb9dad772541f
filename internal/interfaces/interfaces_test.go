package interfaces

import (
	"context"
	"errors"
	"testing"

	"github.com/chrissnell/thermexposure/internal/types"
)

type fakeSession struct {
	steps   []float64
	closed  *bool
	failAt  float64
	fetched []float64
}

func (f *fakeSession) TimeSteps(ctx context.Context, field string) ([]float64, error) {
	return append([]float64(nil), f.steps...), nil
}

func (f *fakeSession) ScalarData(ctx context.Context, field string, t float64) (types.RawBatch, error) {
	if f.failAt != 0 && t == f.failAt {
		return types.RawBatch{}, errors.New("boom")
	}
	f.fetched = append(f.fetched, t)
	return types.RawBatch{Time: t, Nodes: []types.NodeID{1}, Values: []float64{t}}, nil
}

func (f *fakeSession) Close() error {
	*f.closed = true
	return nil
}

type fakeProvider struct {
	session *fakeSession
}

func (p *fakeProvider) Open(ctx context.Context) (ResultSession, error) {
	return p.session, nil
}

func TestFetchBatchesSortsAndCloses(t *testing.T) {
	closed := false
	s := &fakeSession{steps: []float64{3, 1, 2}, closed: &closed}

	batches, err := FetchBatches(context.Background(), &fakeProvider{session: s}, "Temperature")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed {
		t.Error("session was not closed")
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	for i, want := range []float64{1, 2, 3} {
		if batches[i].Time != want {
			t.Errorf("batch %d: expected time %g, got %g", i, want, batches[i].Time)
		}
	}
}

func TestFetchBatchesClosesOnError(t *testing.T) {
	closed := false
	s := &fakeSession{steps: []float64{1, 2}, closed: &closed, failAt: 2}

	_, err := FetchBatches(context.Background(), &fakeProvider{session: s}, "Temperature")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !closed {
		t.Error("session was not closed after a failed query")
	}
}

func TestFetchBatchesNoSteps(t *testing.T) {
	closed := false
	s := &fakeSession{closed: &closed}

	if _, err := FetchBatches(context.Background(), &fakeProvider{session: s}, "Pressure"); err == nil {
		t.Fatal("expected an error for a field without time steps")
	}
}
