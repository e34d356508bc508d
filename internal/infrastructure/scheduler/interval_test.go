package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewIntervalSchedulerValidatesInterval(t *testing.T) {
	t.Parallel()

	if _, err := NewIntervalScheduler("not a duration"); err == nil {
		t.Fatalf("expected error for unparsable interval")
	}
	if _, err := NewIntervalScheduler("-1h"); err == nil {
		t.Fatalf("expected error for negative interval")
	}
	if _, err := NewIntervalScheduler("24h"); err != nil {
		t.Fatalf("24h should be valid: %v", err)
	}
}

func TestStartFiresImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	s, err := NewIntervalScheduler("10ms")
	if err != nil {
		t.Fatalf("NewIntervalScheduler: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	var runs atomic.Int64
	if err := s.Start(context.Background(), func() { runs.Add(1) }); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 runs, got %d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopHaltsJobs(t *testing.T) {
	t.Parallel()

	s, err := NewIntervalScheduler("10ms")
	if err != nil {
		t.Fatalf("NewIntervalScheduler: %v", err)
	}

	var runs atomic.Int64
	if err := s.Start(context.Background(), func() { runs.Add(1) }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got > settled+1 {
		t.Fatalf("jobs kept firing after Stop: %d -> %d", settled, got)
	}
}

func TestContextCancelHaltsJobs(t *testing.T) {
	t.Parallel()

	s, err := NewIntervalScheduler("10ms")
	if err != nil {
		t.Fatalf("NewIntervalScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int64
	if err := s.Start(ctx, func() { runs.Add(1) }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got > settled+1 {
		t.Fatalf("jobs kept firing after cancel: %d -> %d", settled, got)
	}
}
