package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

const (
	jobsTable    = "extraction_jobs"
	resultsTable = "newsletter_results"

	uniqueViolation = "23505"
)

// Schema creates the tables the Postgres store needs. Results cascade with
// their parent job.
const Schema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
    job_id           TEXT PRIMARY KEY,
    status           TEXT        NOT NULL,
    progress         INTEGER     NOT NULL DEFAULT 0,
    progress_message TEXT        NOT NULL DEFAULT '',
    error_message    TEXT,
    params           JSONB       NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL,
    started_at       TIMESTAMPTZ,
    completed_at     TIMESTAMPTZ,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS newsletter_results (
    job_id     TEXT    NOT NULL REFERENCES extraction_jobs (job_id) ON DELETE CASCADE,
    position   INTEGER NOT NULL,
    subject    TEXT    NOT NULL,
    sender     TEXT    NOT NULL,
    sent_date  TEXT    NOT NULL,
    link_count INTEGER NOT NULL,
    links      JSONB   NOT NULL,
    stats      JSONB   NOT NULL,
    PRIMARY KEY (job_id, position)
);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresJobStore persists jobs and their newsletter results in Postgres.
type PostgresJobStore struct {
	db *sql.DB
}

var _ ports.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore wires a sql.DB implementation.
func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// EnsureSchema applies Schema idempotently.
func (s *PostgresJobStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Create(ctx context.Context, job *domain.ExtractionJob) error {
	query, args, err := insertJobQuery(job).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ports.ErrJobExists, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id domain.JobID) (*domain.ExtractionJob, error) {
	query, args, err := selectJobQuery(id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ports.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if job.Status == domain.JobCompleted {
		results, err := s.loadResults(ctx, id)
		if err != nil {
			return nil, err
		}
		job.Results = results
	}

	return job, nil
}

func (s *PostgresJobStore) ListByStatus(ctx context.Context, statuses ...domain.JobStatus) ([]*domain.ExtractionJob, error) {
	query, args, err := listByStatusQuery(statuses).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*domain.ExtractionJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return jobs, nil
}

// Update overwrites the job row. Completed jobs get their result rows
// replaced in the same transaction.
func (s *PostgresJobStore) Update(ctx context.Context, job *domain.ExtractionJob) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := updateJobQuery(job).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrJobNotFound, job.ID)
	}

	if job.Status == domain.JobCompleted {
		if err = s.replaceResults(ctx, tx, job.ID, job.Results); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) Delete(ctx context.Context, id domain.JobID) error {
	query, args, err := psql.Delete(jobsTable).Where(sq.Eq{"job_id": string(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrJobNotFound, id)
	}
	return nil
}

func (s *PostgresJobStore) replaceResults(ctx context.Context, tx *sql.Tx, id domain.JobID, results []domain.NewsletterResult) error {
	query, args, err := psql.Delete(resultsTable).Where(sq.Eq{"job_id": string(id)}).ToSql()
	if err != nil {
		return fmt.Errorf("build results delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	insert, err := insertResultsQuery(id, results)
	if err != nil {
		return err
	}
	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("build results insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}

func (s *PostgresJobStore) loadResults(ctx context.Context, id domain.JobID) ([]domain.NewsletterResult, error) {
	query, args, err := psql.
		Select("subject", "sender", "sent_date", "link_count", "links", "stats").
		From(resultsTable).
		Where(sq.Eq{"job_id": string(id)}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build results select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []domain.NewsletterResult{}
	for rows.Next() {
		var (
			r            domain.NewsletterResult
			links, stats []byte
		)
		if err := rows.Scan(&r.Subject, &r.Sender, &r.Date, &r.LinkCount, &links, &stats); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(links, &r.Links); err != nil {
			return nil, fmt.Errorf("decode links: %w", err)
		}
		if err := json.Unmarshal(stats, &r.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ExtractionJob, error) {
	var (
		job          domain.ExtractionJob
		rawID        string
		status       string
		errorMessage sql.NullString
		params       []byte
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&rawID, &status, &job.Progress, &job.ProgressMessage, &errorMessage,
		&params, &job.CreatedAt, &startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.ID = domain.JobID(rawID)
	job.Status = domain.JobStatus(status)
	job.ErrorMessage = errorMessage.String
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return &job, nil
}

func insertJobQuery(job *domain.ExtractionJob) sq.InsertBuilder {
	params, _ := json.Marshal(job.Params)
	return psql.Insert(jobsTable).
		Columns("job_id", "status", "progress", "progress_message", "error_message",
			"params", "created_at", "started_at", "completed_at").
		Values(string(job.ID), string(job.Status), job.Progress, job.ProgressMessage,
			nullString(job.ErrorMessage), params, job.CreatedAt, job.StartedAt, job.CompletedAt)
}

func selectJobQuery(id domain.JobID) sq.SelectBuilder {
	return psql.
		Select("job_id", "status", "progress", "progress_message", "error_message",
			"params", "created_at", "started_at", "completed_at").
		From(jobsTable).
		Where(sq.Eq{"job_id": string(id)})
}

func listByStatusQuery(statuses []domain.JobStatus) sq.SelectBuilder {
	values := make([]string, 0, len(statuses))
	for _, status := range statuses {
		values = append(values, string(status))
	}
	return psql.
		Select("job_id", "status", "progress", "progress_message", "error_message",
			"params", "created_at", "started_at", "completed_at").
		From(jobsTable).
		Where(sq.Eq{"status": values}).
		OrderBy("created_at")
}

func updateJobQuery(job *domain.ExtractionJob) sq.UpdateBuilder {
	return psql.Update(jobsTable).
		Set("status", string(job.Status)).
		Set("progress", job.Progress).
		Set("progress_message", job.ProgressMessage).
		Set("error_message", nullString(job.ErrorMessage)).
		Set("started_at", job.StartedAt).
		Set("completed_at", job.CompletedAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"job_id": string(job.ID)})
}

func insertResultsQuery(id domain.JobID, results []domain.NewsletterResult) (sq.InsertBuilder, error) {
	insert := psql.Insert(resultsTable).
		Columns("job_id", "position", "subject", "sender", "sent_date", "link_count", "links", "stats")
	for i, r := range results {
		links := r.Links
		if links == nil {
			links = []domain.ResultLink{}
		}
		rawLinks, err := json.Marshal(links)
		if err != nil {
			return insert, fmt.Errorf("encode links: %w", err)
		}
		rawStats, err := json.Marshal(r.Stats)
		if err != nil {
			return insert, fmt.Errorf("encode stats: %w", err)
		}
		insert = insert.Values(string(id), i, r.Subject, r.Sender, r.Date, r.LinkCount, rawLinks, rawStats)
	}
	return insert, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
