package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/links"
	"NewsletterScanner/internal/ports"
)

const defaultConcurrency = 8

// ProgressFunc is called after each newsletter with the number processed so far.
type ProgressFunc func(done, total int)

// PipelineDeps wires the driven adapters into the link pipeline.
type PipelineDeps struct {
	Resolver    ports.RedirectResolver
	Validator   ports.LinkValidator
	Metrics     ports.Metrics
	Logger      *slog.Logger
	LinkBudget  int
	Concurrency int
}

// Pipeline turns newsletter bodies into deduplicated article links.
type Pipeline struct {
	resolver    ports.RedirectResolver
	validator   ports.LinkValidator
	metrics     ports.Metrics
	logger      *slog.Logger
	linkBudget  int
	concurrency int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Resolver == nil {
		return nil, errors.New("pipeline: resolver is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("pipeline: validator is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultConcurrency
	}
	return &Pipeline{
		resolver:    deps.Resolver,
		validator:   deps.Validator,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		linkBudget:  deps.LinkBudget,
		concurrency: deps.Concurrency,
	}, nil
}

// Process runs every newsletter through extraction, resolution, validation and
// dedup, in input order. Individual link failures are counted, never returned;
// the only error is a done context.
func (p *Pipeline) Process(ctx context.Context, jobID domain.JobID, emails []domain.NewsletterEmail, progress ProgressFunc) ([]domain.NewsletterResult, error) {
	logger := p.jobLogger(jobID)
	results := make([]domain.NewsletterResult, 0, len(emails))

	for i, email := range emails {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := p.processNewsletter(ctx, logger, email)
		results = append(results, result)
		p.metrics.NewsletterProcessed()

		if logger != nil {
			logger.Info("newsletter processed",
				"subject", email.Subject,
				"sender", email.Sender,
				"links", result.LinkCount,
				"extracted", result.Stats.Extracted,
				"resolve_failed", result.Stats.ResolveFailed,
				"rejected", result.Stats.Rejected)
		}
		if progress != nil {
			progress(i+1, len(emails))
		}
	}

	return results, nil
}

func (p *Pipeline) processNewsletter(ctx context.Context, logger *slog.Logger, email domain.NewsletterEmail) domain.NewsletterResult {
	var stats domain.LinkStats

	candidates := links.Candidates(email.HTML)
	stats.Extracted = len(candidates)
	for _, c := range candidates {
		p.metrics.LinkClassified(c.Kind)
		switch c.Kind {
		case domain.KindJunk:
			stats.Junk++
		case domain.KindDirect:
			stats.Direct++
		case domain.KindTracking:
			stats.Tracking++
		}
	}

	budgeted := links.ApplyBudget(links.Prioritize(candidates), p.linkBudget)
	stats.Budgeted = len(budgeted)

	dedup := links.NewDeduplicator()
	for _, slot := range p.resolveAll(ctx, logger, budgeted) {
		if slot == nil {
			stats.ResolveFailed++
			continue
		}
		stats.Resolved++

		slot.Verdict = p.validator.Validate(slot.FinalURL)
		p.metrics.Verdict(slot.Verdict)
		if !slot.Verdict.Accepted {
			stats.Rejected++
			p.debug(logger, "link rejected", "url", slot.FinalURL, "reason", slot.Verdict.Reason)
			continue
		}
		dedup.Add(*slot)
	}
	stats.Duplicates = dedup.Duplicates()

	kept := dedup.Links()
	return domain.NewsletterResult{
		Subject:   email.Subject,
		Sender:    email.Sender,
		Date:      email.Date,
		Links:     kept,
		LinkCount: len(kept),
		Stats:     stats,
	}
}

// resolveAll follows tracking links concurrently. The returned slice is
// index-aligned with candidates; a nil slot is a failed resolution.
func (p *Pipeline) resolveAll(ctx context.Context, logger *slog.Logger, candidates []domain.CandidateLink) []*domain.ResolvedLink {
	slots := make([]*domain.ResolvedLink, len(candidates))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, c := range candidates {
		if c.Kind != domain.KindTracking {
			slots[i] = &domain.ResolvedLink{FinalURL: c.DecodedURL}
			continue
		}

		g.Go(func() error {
			started := time.Now()
			final, err := p.resolver.Resolve(ctx, c.DecodedURL)
			if err != nil {
				if logger != nil {
					logger.Warn("resolve failed", "url", c.DecodedURL, "error", err)
				}
				return nil
			}
			link := &domain.ResolvedLink{FinalURL: final}
			if final != c.DecodedURL {
				link.OriginalURL = c.DecodedURL
			}
			slots[i] = link
			p.debug(logger, "link resolved", "url", c.DecodedURL, "final", final, "elapsed", time.Since(started))
			return nil
		})
	}
	_ = g.Wait()

	return slots
}

func (p *Pipeline) jobLogger(jobID domain.JobID) *slog.Logger {
	if p.logger == nil {
		return nil
	}
	return p.logger.With("job_id", jobID.String())
}

func (p *Pipeline) debug(logger *slog.Logger, msg string, args ...interface{}) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

type noopMetrics struct{}

func (noopMetrics) LinkClassified(domain.LinkKind)              {}
func (noopMetrics) Verdict(domain.Verdict)                      {}
func (noopMetrics) NewsletterProcessed()                        {}
func (noopMetrics) JobFinished(domain.JobStatus, time.Duration) {}
