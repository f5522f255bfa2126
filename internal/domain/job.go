package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTerminal is returned when a finished job is asked to change.
	ErrTerminal = errors.New("job already reached a terminal status")
	// ErrInvalidTransition is returned for transitions the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrInvalidJobID is returned when a caller-supplied identifier is unusable.
	ErrInvalidJobID = errors.New("invalid job id")
)

var jobIDExpr = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)

// JobID identifies one extraction job. It is assigned once at submission and
// passed unchanged to everything that works on the job.
type JobID string

// ParseJobID accepts a caller-supplied identifier as-is after checking its shape.
func ParseJobID(raw string) (JobID, error) {
	if !jobIDExpr.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, raw)
	}
	return JobID(raw), nil
}

func (id JobID) String() string {
	return string(id)
}

// JobStatus enumerates the extraction job lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobParams narrows which newsletters a job processes.
type JobParams struct {
	TimeWindow     time.Duration `json:"time_window"`
	MaxNewsletters int           `json:"max_newsletters"`
	SenderFilter   []string      `json:"sender_filter,omitempty"`
}

// ExtractionJob is the persisted record of one pipeline execution.
type ExtractionJob struct {
	ID              JobID
	Status          JobStatus
	Progress        int
	ProgressMessage string
	ErrorMessage    string
	Params          JobParams
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Results         []NewsletterResult
}

// NewExtractionJob builds a pending job for the given identifier.
func NewExtractionJob(id JobID, params JobParams, now time.Time) *ExtractionJob {
	return &ExtractionJob{
		ID:              id,
		Status:          JobPending,
		ProgressMessage: "queued",
		Params:          params,
		CreatedAt:       now,
	}
}

// Start moves a pending job to processing.
func (j *ExtractionJob) Start(now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	if j.Status != JobPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobProcessing)
	}
	j.Status = JobProcessing
	j.StartedAt = &now
	return nil
}

// Advance records a progress checkpoint. Progress never moves backwards; a
// lower value keeps the current percentage but still updates the message.
func (j *ExtractionJob) Advance(progress int, message string) error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	if progress > 100 {
		progress = 100
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	j.ProgressMessage = message
	return nil
}

// Complete finishes a processing job with its results.
func (j *ExtractionJob) Complete(results []NewsletterResult, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	if j.Status != JobProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, JobCompleted)
	}
	if results == nil {
		results = []NewsletterResult{}
	}
	j.Status = JobCompleted
	j.Progress = 100
	j.ProgressMessage = "done"
	j.Results = results
	j.CompletedAt = &now
	return nil
}

// Fail finishes a job with an error message. No partial results survive.
func (j *ExtractionJob) Fail(message string, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	j.Status = JobFailed
	j.ErrorMessage = message
	j.ProgressMessage = "failed"
	j.Results = nil
	j.CompletedAt = &now
	return nil
}

// Clone returns a deep copy so stores and callers never share mutable state.
func (j *ExtractionJob) Clone() *ExtractionJob {
	if j == nil {
		return nil
	}
	c := *j
	c.Params.SenderFilter = append([]string(nil), j.Params.SenderFilter...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Results != nil {
		c.Results = make([]NewsletterResult, len(j.Results))
		for i, r := range j.Results {
			r.Links = append([]ResultLink(nil), r.Links...)
			c.Results[i] = r
		}
	}
	return &c
}

// JobSnapshot is what a poller sees.
type JobSnapshot struct {
	JobID           JobID              `json:"job_id"`
	Status          JobStatus          `json:"status"`
	Progress        int                `json:"progress"`
	ProgressMessage string             `json:"progress_message"`
	ErrorMessage    *string            `json:"error_message"`
	Results         []NewsletterResult `json:"results"`
	CreatedAt       time.Time          `json:"created_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

// Snapshot renders the poll view. Results are only exposed once completed.
func (j *ExtractionJob) Snapshot() JobSnapshot {
	c := j.Clone()
	snap := JobSnapshot{
		JobID:           c.ID,
		Status:          c.Status,
		Progress:        c.Progress,
		ProgressMessage: c.ProgressMessage,
		CreatedAt:       c.CreatedAt,
		CompletedAt:     c.CompletedAt,
	}
	if c.ErrorMessage != "" {
		msg := c.ErrorMessage
		snap.ErrorMessage = &msg
	}
	if c.Status == JobCompleted {
		snap.Results = c.Results
	}
	return snap
}

// ParseWindow parses a look-back window. Besides time.ParseDuration syntax it
// accepts a whole number of days such as "7d".
func ParseWindow(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid window %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid window %q: negative", raw)
	}
	return d, nil
}
