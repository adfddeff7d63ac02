// File: internal/infra/db/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/repository"
)

// Compile-time checks
var (
	_ repository.JobRepository  = (*Store)(nil)
	_ repository.ExpiredDeleter = (*Store)(nil)
)

// Store keeps jobs and batches in mutex-guarded maps with the same
// conditional-write semantics as the postgres store. It backs local
// development and the pipeline tests; nothing survives a restart.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*model.Job
	batches map[string]*model.BatchJob
}

func NewStore() *Store {
	return &Store{
		jobs:    make(map[string]*model.Job),
		batches: make(map[string]*model.BatchJob),
	}
}

func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *Store) FindJob(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, id string, expected, next model.JobStatus, fields repository.StatusUpdate) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if job.Status != expected {
		return nil, domain.ErrConflict
	}
	job.Status = next
	if fields.TempKey != "" {
		job.TempKey = fields.TempKey
	}
	if fields.FinalKey != "" {
		job.FinalKey = fields.FinalKey
	}
	if fields.Error != "" {
		job.Error = fields.Error
	}
	job.UpdatedAt = time.Now()
	return cloneJob(job), nil
}

func (s *Store) FindJobsByBatch(ctx context.Context, batchID string) ([]*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Job
	for _, job := range s.jobs {
		if job.BatchID == batchID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateBatch(ctx context.Context, batch *model.BatchJob, children []*model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, job := range children {
		if _, ok := s.jobs[job.ID]; ok {
			return domain.ErrAlreadyExists
		}
	}
	s.batches[batch.ID] = cloneBatch(batch)
	for _, job := range children {
		s.jobs[job.ID] = cloneJob(job)
	}
	return nil
}

func (s *Store) FindBatch(ctx context.Context, id string) (*model.BatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneBatch(batch), nil
}

func (s *Store) UpdateBatchProgress(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if batch.CompletedCount != expectedCount {
		return nil, domain.ErrConflict
	}
	batch.CompletedCount = newCount
	batch.Status = status
	batch.UpdatedAt = time.Now()
	return cloneBatch(batch), nil
}

func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, job := range s.jobs {
		if !job.ExpiresAt.After(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	for id, batch := range s.batches {
		if !batch.ExpiresAt.After(cutoff) {
			delete(s.batches, id)
			removed++
		}
	}
	return removed, nil
}

// cloneJob keeps callers from mutating stored state through returned pointers.
func cloneJob(j *model.Job) *model.Job {
	c := *j
	return &c
}

func cloneBatch(b *model.BatchJob) *model.BatchJob {
	c := *b
	c.IndividualPrompts = append([]string(nil), b.IndividualPrompts...)
	c.ChildJobIDs = append([]string(nil), b.ChildJobIDs...)
	return &c
}
