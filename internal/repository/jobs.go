package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/textforge/humanizer-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// JobsRepository abstracts persistence of transform job records.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.JobRecord) error
	UpdateJob(ctx context.Context, job *domain.JobRecord) error
	GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error)
}

// MemoryJobsRepository stores job records in memory for local development.
type MemoryJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.JobRecord
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.JobRecord),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobsRepository) UpdateJob(_ context.Context, job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}
