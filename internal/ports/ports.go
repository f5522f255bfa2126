package ports

import (
	"context"
	"errors"
	"time"

	"NewsletterScanner/internal/domain"
)

var (
	// ErrJobNotFound is returned by a JobStore for unknown identifiers.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned by a JobStore when an identifier is reused.
	ErrJobExists = errors.New("job already exists")
)

// MailQuery narrows which messages a mail source returns.
type MailQuery struct {
	Since          time.Time
	MaxNewsletters int
	SenderFilter   []string
}

// MailSource pulls raw newsletter emails from a mailbox provider.
type MailSource interface {
	Fetch(ctx context.Context, query MailQuery) ([]domain.NewsletterEmail, error)
}

// JobStore persists extraction jobs keyed by their identifier. Update is
// last-writer-wins; Delete removes the job together with its results.
// ListByStatus returns jobs in any of the given statuses, without results.
type JobStore interface {
	Create(ctx context.Context, job *domain.ExtractionJob) error
	Get(ctx context.Context, id domain.JobID) (*domain.ExtractionJob, error)
	Update(ctx context.Context, job *domain.ExtractionJob) error
	Delete(ctx context.Context, id domain.JobID) error
	ListByStatus(ctx context.Context, statuses ...domain.JobStatus) ([]*domain.ExtractionJob, error)
}

// RedirectResolver follows a tracking link to its final destination.
type RedirectResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// LinkValidator decides whether a final URL is article content.
type LinkValidator interface {
	Validate(finalURL string) domain.Verdict
}

// Scheduler controls when extraction jobs are submitted.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Metrics receives pipeline and job counters.
type Metrics interface {
	LinkClassified(kind domain.LinkKind)
	Verdict(v domain.Verdict)
	NewsletterProcessed()
	JobFinished(status domain.JobStatus, elapsed time.Duration)
}

// Notifier delivers a text digest of a completed job.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}
