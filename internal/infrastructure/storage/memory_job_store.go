package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

// MemoryJobStore keeps jobs in process memory. Every read and write copies,
// so callers never share mutable state with the store.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[domain.JobID]*domain.ExtractionJob
}

var _ ports.JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore builds an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[domain.JobID]*domain.ExtractionJob{}}
}

func (s *MemoryJobStore) Create(_ context.Context, job *domain.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("%w: %s", ports.ErrJobExists, job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id domain.JobID) (*domain.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrJobNotFound, id)
	}
	return job.Clone(), nil
}

func (s *MemoryJobStore) Update(_ context.Context, job *domain.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("%w: %s", ports.ErrJobNotFound, job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Delete(_ context.Context, id domain.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ports.ErrJobNotFound, id)
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) ListByStatus(_ context.Context, statuses ...domain.JobStatus) ([]*domain.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := []*domain.ExtractionJob{}
	for _, job := range s.jobs {
		if slices.Contains(statuses, job.Status) {
			c := job.Clone()
			c.Results = nil
			jobs = append(jobs, c)
		}
	}
	slices.SortFunc(jobs, func(a, b *domain.ExtractionJob) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}
