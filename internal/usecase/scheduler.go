package usecase

import (
	"context"

	"PaperDigest/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case for
// daemon mode.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewScheduler returns a helper to start/stop recurring digest runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline}
}

// Start registers the pipeline with the provided scheduler and blocks
// until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func() {
		_ = s.pipeline.RunAndReport(ctx, false)
	}
	if err := s.driver.Start(ctx, job); err != nil {
		return err
	}

	<-ctx.Done()
	return s.driver.Stop(context.Background())
}
