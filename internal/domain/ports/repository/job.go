package repository

import (
	"context"
	"time"

	"photo-enhance-pipeline/internal/domain/model"
)

// StatusUpdate carries the optional fields written together with a status
// transition. Empty strings leave the stored value untouched.
type StatusUpdate struct {
	TempKey  string
	FinalKey string
	Error    string
}

// JobRepository persists jobs and batches. Every mutation is a conditional
// write: updates name the state they expect and fail with domain.ErrConflict
// when another writer got there first, so callers re-read and retry instead
// of overwriting.
type JobRepository interface {
	CreateJob(ctx context.Context, job *model.Job) error
	FindJob(ctx context.Context, id string) (*model.Job, error)
	// UpdateJobStatus moves a job from expected to next and applies fields,
	// returning the stored row. domain.ErrNotFound when the job is gone,
	// domain.ErrConflict when its status no longer equals expected.
	UpdateJobStatus(ctx context.Context, id string, expected, next model.JobStatus, fields StatusUpdate) (*model.Job, error)
	FindJobsByBatch(ctx context.Context, batchID string) ([]*model.Job, error)

	// CreateBatch persists the batch and its child jobs atomically.
	CreateBatch(ctx context.Context, batch *model.BatchJob, children []*model.Job) error
	FindBatch(ctx context.Context, id string) (*model.BatchJob, error)
	// UpdateBatchProgress is a compare-and-swap on the completed counter:
	// it writes newCount and status only when the stored counter still
	// equals expectedCount, otherwise domain.ErrConflict.
	UpdateBatchProgress(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error)
}

// ExpiredDeleter removes jobs and batches whose retention window has passed.
// Kept separate from JobRepository: only the sweeper needs it.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
