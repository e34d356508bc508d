package scheduler

import (
	"context"
	"fmt"
	"time"

	"PaperDigest/internal/ports"
)

// IntervalScheduler re-runs the pipeline on a fixed interval, firing once
// immediately on start. The daily digest does not need cron semantics.
type IntervalScheduler struct {
	interval time.Duration
	stop     chan struct{}
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler parses a duration string such as "24h".
func NewIntervalScheduler(interval string) (*IntervalScheduler, error) {
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler interval %q: %w", interval, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive, got %s", d)
	}
	return &IntervalScheduler{interval: d}, nil
}

// Start begins ticking; the first run happens immediately.
func (s *IntervalScheduler) Start(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}
	if s.stop != nil {
		return nil
	}

	s.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job()
		for {
			select {
			case <-ticker.C:
				job()
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the ticker goroutine.
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	s.stop = nil
	return nil
}
