package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, before)
	return 3, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestJanitor_SweepUsesRetentionCutoff(t *testing.T) {
	p := &fakePruner{}
	j := NewJanitor(zap.NewNop(), p, 30*24*time.Hour)
	now := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	n, err := j.sweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("want 3 rows, got %d", n)
	}
	want := time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	if !p.cutoffs[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", p.cutoffs[0], want)
	}
}

func TestJanitor_SweepReportsError(t *testing.T) {
	p := &fakePruner{err: errors.New("db down")}
	j := NewJanitor(zap.NewNop(), p, time.Hour)
	if _, err := j.sweepOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJanitor_RunSweepsImmediatelyAndStops(t *testing.T) {
	p := &fakePruner{}
	j := NewJanitor(zap.NewNop(), p, time.Hour)
	j.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if p.calls() < 2 {
		t.Fatalf("want initial pass plus ticks, got %d", p.calls())
	}
}

func TestJanitor_DisabledWithoutRetention(t *testing.T) {
	p := &fakePruner{}
	j := NewJanitor(zap.NewNop(), p, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = j.Run(ctx)
	if p.calls() != 0 {
		t.Fatalf("disabled janitor must not prune")
	}
}
