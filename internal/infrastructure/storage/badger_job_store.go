package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/timshannon/badgerhold/v4"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// BadgerJobStore keeps jobs in an embedded Badger database, for single-node
// deployments that want jobs to survive a restart.
type BadgerJobStore struct {
	store *badgerhold.Store
}

var _ ports.JobStore = (*BadgerJobStore)(nil)

// OpenBadgerJobStore opens or creates the database under dir. An empty dir
// runs Badger in memory.
func OpenBadgerJobStore(dir string) (*BadgerJobStore, error) {
	options := badgerhold.DefaultOptions
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal
	options.Logger = nil
	if dir == "" {
		options.InMemory = true
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		options.Dir = dir
		options.ValueDir = dir
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerJobStore{store: store}, nil
}

// Close releases the database files.
func (s *BadgerJobStore) Close() error {
	return s.store.Close()
}

func (s *BadgerJobStore) Create(_ context.Context, job *domain.ExtractionJob) error {
	if err := s.store.Insert(string(job.ID), job.Clone()); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return fmt.Errorf("%w: %s", ports.ErrJobExists, job.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *BadgerJobStore) Get(_ context.Context, id domain.JobID) (*domain.ExtractionJob, error) {
	var job domain.ExtractionJob
	if err := s.store.Get(string(id), &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ports.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

func (s *BadgerJobStore) Update(_ context.Context, job *domain.ExtractionJob) error {
	if err := s.store.Update(string(job.ID), job.Clone()); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", ports.ErrJobNotFound, job.ID)
		}
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (s *BadgerJobStore) Delete(_ context.Context, id domain.JobID) error {
	if err := s.store.Delete(string(id), &domain.ExtractionJob{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", ports.ErrJobNotFound, id)
		}
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// ListByStatus filters a full scan in process.
func (s *BadgerJobStore) ListByStatus(_ context.Context, statuses ...domain.JobStatus) ([]*domain.ExtractionJob, error) {
	var all []domain.ExtractionJob
	if err := s.store.Find(&all, nil); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := []*domain.ExtractionJob{}
	for i := range all {
		if slices.Contains(statuses, all[i].Status) {
			job := all[i]
			job.Results = nil
			jobs = append(jobs, &job)
		}
	}
	slices.SortFunc(jobs, func(a, b *domain.ExtractionJob) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}
