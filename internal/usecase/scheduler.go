package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// IDGenerator mints the identifier for a server-initiated job.
type IDGenerator func(trigger time.Time) domain.JobID

// Scheduler submits a job to the runner on every driver tick.
type Scheduler struct {
	driver ports.Scheduler
	runner *JobRunner
	newID  IDGenerator
	params domain.JobParams
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, runner *JobRunner, newID IDGenerator, params domain.JobParams, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, runner: runner, newID: newID, params: params, logger: logger}
}

// Start registers the submission with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil || s.newID == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Submit(ctx, trigger)
	})
}

// Submit creates one job for trigger. The ID is generated here once and
// handed unchanged to the runner.
func (s *Scheduler) Submit(ctx context.Context, trigger time.Time) (domain.JobID, error) {
	id := s.newID(trigger)
	if _, err := s.runner.Create(ctx, id, s.params); err != nil {
		if s.logger != nil {
			s.logger.Error("scheduled job rejected", "job_id", id.String(), "error", err)
		}
		return id, err
	}
	if s.logger != nil {
		s.logger.Info("scheduled job submitted", "job_id", id.String(), "trigger", trigger)
	}
	return id, nil
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
