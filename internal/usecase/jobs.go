package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// ErrJobActive is returned when a job that is still running is deleted.
var ErrJobActive = errors.New("job is still running")

const interruptedMessage = "interrupted by restart"

// Progress checkpoints reported by the worker.
const (
	progressAccepted = 5
	progressFetching = 10
	progressFetched  = 20
	progressResolved = 90
)

// JobRunnerDeps wires the runner.
type JobRunnerDeps struct {
	Store    ports.JobStore
	Source   ports.MailSource
	Pipeline *Pipeline
	Metrics  ports.Metrics
	// Notifier, when set, receives a digest of every completed job.
	Notifier ports.Notifier
	Logger   *slog.Logger
	// Defaults fill zero-valued submission parameters.
	Defaults domain.JobParams
	Clock    func() time.Time
}

// JobRunner accepts extraction jobs and executes them in the background.
// Each job has exactly one worker, which is the only writer of its record.
type JobRunner struct {
	store    ports.JobStore
	source   ports.MailSource
	pipeline *Pipeline
	metrics  ports.Metrics
	notifier ports.Notifier
	logger   *slog.Logger
	defaults domain.JobParams
	now      func() time.Time

	wg sync.WaitGroup
}

// NewJobRunner constructs the runner.
func NewJobRunner(deps JobRunnerDeps) (*JobRunner, error) {
	if deps.Store == nil {
		return nil, errors.New("job runner: store is required")
	}
	if deps.Source == nil {
		return nil, errors.New("job runner: mail source is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("job runner: pipeline is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &JobRunner{
		store:    deps.Store,
		source:   deps.Source,
		pipeline: deps.Pipeline,
		metrics:  deps.Metrics,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		defaults: deps.Defaults,
		now:      deps.Clock,
	}, nil
}

// Create persists a pending job under id and starts its worker. It returns as
// soon as the job is stored; the worker does not inherit ctx cancellation.
func (r *JobRunner) Create(ctx context.Context, id domain.JobID, params domain.JobParams) (domain.JobSnapshot, error) {
	job := domain.NewExtractionJob(id, r.withDefaults(params), r.now())
	if err := r.store.Create(ctx, job); err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("create job %s: %w", id, err)
	}
	snap := job.Snapshot()

	if r.logger != nil {
		r.logger.Info("job accepted", "job_id", id.String(),
			"time_window", job.Params.TimeWindow.String(),
			"max_newsletters", job.Params.MaxNewsletters)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(context.WithoutCancel(ctx), job)
	}()

	return snap, nil
}

// Get returns the latest persisted state of a job.
func (r *JobRunner) Get(ctx context.Context, id domain.JobID) (domain.JobSnapshot, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job.Snapshot(), nil
}

// Delete removes a finished job and its results.
func (r *JobRunner) Delete(ctx context.Context, id domain.JobID) error {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobActive, id)
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// RecoverInterrupted fails every job left pending or processing by a previous
// process. It must run before the first Create.
func (r *JobRunner) RecoverInterrupted(ctx context.Context) (int, error) {
	jobs, err := r.store.ListByStatus(ctx, domain.JobPending, domain.JobProcessing)
	if err != nil {
		return 0, fmt.Errorf("list unfinished jobs: %w", err)
	}

	recovered := 0
	var errs []error
	for _, job := range jobs {
		logger := r.jobLogger(job.ID)
		now := r.now()
		if err := job.Fail(interruptedMessage, now); err != nil {
			continue
		}
		if err := r.store.Update(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("fail job %s: %w", job.ID, err))
			continue
		}
		recovered++

		since := job.CreatedAt
		if job.StartedAt != nil {
			since = *job.StartedAt
		}
		r.metrics.JobFinished(domain.JobFailed, now.Sub(since))
		if logger != nil {
			logger.Warn("job interrupted by restart", "progress", job.Progress)
		}
	}
	return recovered, errors.Join(errs...)
}

// Wait blocks until every started worker has finished.
func (r *JobRunner) Wait() {
	r.wg.Wait()
}

func (r *JobRunner) run(ctx context.Context, job *domain.ExtractionJob) {
	logger := r.jobLogger(job.ID)
	started := r.now()

	defer func() {
		if rec := recover(); rec != nil {
			if logger != nil {
				logger.Error("job worker panicked", "panic", rec)
			}
			r.fail(ctx, logger, job, fmt.Sprintf("internal error: %v", rec), started)
		}
	}()

	if err := job.Start(started); err != nil {
		if logger != nil {
			logger.Error("job start rejected", "error", err)
		}
		return
	}
	r.checkpoint(ctx, logger, job, progressAccepted, "job accepted")
	r.checkpoint(ctx, logger, job, progressFetching, "fetching newsletters")

	emails, err := r.source.Fetch(ctx, r.mailQuery(job.Params, started))
	if err != nil {
		r.fail(ctx, logger, job, fmt.Sprintf("fetch newsletters: %v", err), started)
		return
	}
	r.checkpoint(ctx, logger, job, progressFetched, fmt.Sprintf("fetched %d newsletters", len(emails)))

	span := progressResolved - progressFetched
	results, err := r.pipeline.Process(ctx, job.ID, emails, func(done, total int) {
		r.checkpoint(ctx, logger, job, progressFetched+span*done/total,
			fmt.Sprintf("resolving links (%d/%d)", done, total))
	})
	if err != nil {
		r.fail(ctx, logger, job, fmt.Sprintf("process newsletters: %v", err), started)
		return
	}

	r.checkpoint(ctx, logger, job, progressResolved, "persisting results")

	unfinished := job.Clone()
	if err := job.Complete(results, r.now()); err != nil {
		if logger != nil {
			logger.Error("job complete rejected", "error", err)
		}
		return
	}
	if err := r.store.Update(ctx, job); err != nil {
		if logger != nil {
			logger.Error("persist completed job", "error", err)
		}
		r.fail(ctx, logger, unfinished, fmt.Sprintf("persist results: %v", err), started)
		return
	}
	r.metrics.JobFinished(domain.JobCompleted, r.now().Sub(started))
	r.notify(ctx, logger, job)

	if logger != nil {
		logger.Info("job completed", "newsletters", len(results), "elapsed", r.now().Sub(started).String())
	}
}

func (r *JobRunner) checkpoint(ctx context.Context, logger *slog.Logger, job *domain.ExtractionJob, progress int, message string) {
	if err := job.Advance(progress, message); err != nil {
		return
	}
	if err := r.store.Update(ctx, job); err != nil && logger != nil {
		logger.Warn("persist progress", "progress", progress, "error", err)
	}
	if logger != nil {
		logger.Debug("progress", "progress", job.Progress, "message", message)
	}
}

func (r *JobRunner) fail(ctx context.Context, logger *slog.Logger, job *domain.ExtractionJob, message string, started time.Time) {
	if err := job.Fail(message, r.now()); err != nil {
		return
	}
	if err := r.store.Update(ctx, job); err != nil && logger != nil {
		logger.Error("persist failed job", "error", err)
	}
	r.metrics.JobFinished(domain.JobFailed, r.now().Sub(started))

	if logger != nil {
		logger.Error("job failed", "error", message)
	}
}

// notify delivers the digest. Delivery failures never change the job outcome.
func (r *JobRunner) notify(ctx context.Context, logger *slog.Logger, job *domain.ExtractionJob) {
	if r.notifier == nil {
		return
	}
	digest := buildDigestMessage(job.ID, job.Results)
	if digest == "" {
		return
	}
	if err := r.notifier.PublishDigest(ctx, digest); err != nil && logger != nil {
		logger.Warn("publish digest", "error", err)
	}
}

func (r *JobRunner) mailQuery(params domain.JobParams, now time.Time) ports.MailQuery {
	query := ports.MailQuery{
		MaxNewsletters: params.MaxNewsletters,
		SenderFilter:   params.SenderFilter,
	}
	if params.TimeWindow > 0 {
		query.Since = now.Add(-params.TimeWindow)
	}
	return query
}

func (r *JobRunner) withDefaults(params domain.JobParams) domain.JobParams {
	if params.TimeWindow <= 0 {
		params.TimeWindow = r.defaults.TimeWindow
	}
	if params.MaxNewsletters <= 0 {
		params.MaxNewsletters = r.defaults.MaxNewsletters
	}
	if len(params.SenderFilter) == 0 && len(r.defaults.SenderFilter) > 0 {
		params.SenderFilter = append([]string(nil), r.defaults.SenderFilter...)
	}
	return params
}

func (r *JobRunner) jobLogger(id domain.JobID) *slog.Logger {
	if r.logger == nil {
		return nil
	}
	return r.logger.With("job_id", id.String())
}
