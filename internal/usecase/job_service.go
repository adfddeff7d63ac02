package usecase

import (
	"context"
	"errors"
	"fmt"

	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/repository"
	"photo-enhance-pipeline/internal/infra/logging"

	"github.com/rs/zerolog"
)

// batchProgressRetries bounds how often a lost counter CAS is retried with a
// fresh read before giving up.
const batchProgressRetries = 3

// Compile-time check
var _ JobService = (*jobService)(nil)

// JobService owns job and batch lifecycle persistence. Every status change
// validates the transition against the lifecycle table before touching the
// store, and every write is conditional on the state the caller saw.
type JobService interface {
	CreateJob(ctx context.Context, in model.NewJobInput) (*model.Job, error)
	CreateBatch(ctx context.Context, in model.NewBatchInput) (*model.BatchJob, []*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetBatch(ctx context.Context, id string) (*model.BatchJob, error)
	JobsInBatch(ctx context.Context, batchID string) ([]*model.Job, error)

	MarkProcessing(ctx context.Context, id, tempKey string) (*model.Job, error)
	MarkEditing(ctx context.Context, id string) (*model.Job, error)
	MarkCompleted(ctx context.Context, id, finalKey string) (*model.Job, error)
	MarkFailed(ctx context.Context, id, message string) (*model.Job, error)

	// IncrementBatchProgress advances the batch counter by one via
	// compare-and-swap, retrying on conflict. The returned batch reflects
	// the write that landed; a completed status on it means this call was
	// the one that finished the batch.
	IncrementBatchProgress(ctx context.Context, batchID string) (*model.BatchJob, error)
}

type jobService struct {
	repo repository.JobRepository
	log  *zerolog.Logger
}

func NewJobService(repo repository.JobRepository, logger *zerolog.Logger) *jobService {
	l := logger.With().Str("component", "job_service").Logger()
	return &jobService{repo: repo, log: &l}
}

func (s *jobService) CreateJob(ctx context.Context, in model.NewJobInput) (*model.Job, error) {
	job, err := model.NewJob(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.log.Info().Str("job_id", job.ID).Str("user_id", job.UserID).Msg("job created")
	return job, nil
}

func (s *jobService) CreateBatch(ctx context.Context, in model.NewBatchInput) (*model.BatchJob, []*model.Job, error) {
	defer logging.TraceDuration(s.log, "JobService.CreateBatch")()
	batch, err := model.NewBatchJob(in)
	if err != nil {
		return nil, nil, err
	}
	children := make([]*model.Job, 0, in.FileCount)
	for i := 0; i < in.FileCount; i++ {
		child, err := model.NewJob(model.NewJobInput{
			UserID:  in.UserID,
			Prompt:  batch.PromptFor(i),
			BatchID: batch.ID,
		})
		if err != nil {
			return nil, nil, err
		}
		batch.ChildJobIDs = append(batch.ChildJobIDs, child.ID)
		children = append(children, child)
	}
	if err := s.repo.CreateBatch(ctx, batch, children); err != nil {
		return nil, nil, fmt.Errorf("create batch: %w", err)
	}
	s.log.Info().Str("batch_id", batch.ID).Int("jobs", len(children)).Msg("batch created")
	return batch, children, nil
}

func (s *jobService) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return s.repo.FindJob(ctx, id)
}

func (s *jobService) GetBatch(ctx context.Context, id string) (*model.BatchJob, error) {
	return s.repo.FindBatch(ctx, id)
}

func (s *jobService) JobsInBatch(ctx context.Context, batchID string) ([]*model.Job, error) {
	return s.repo.FindJobsByBatch(ctx, batchID)
}

func (s *jobService) MarkProcessing(ctx context.Context, id, tempKey string) (*model.Job, error) {
	return s.transition(ctx, id, model.JobStatusProcessing, repository.StatusUpdate{TempKey: tempKey})
}

func (s *jobService) MarkEditing(ctx context.Context, id string) (*model.Job, error) {
	return s.transition(ctx, id, model.JobStatusEditing, repository.StatusUpdate{})
}

func (s *jobService) MarkCompleted(ctx context.Context, id, finalKey string) (*model.Job, error) {
	return s.transition(ctx, id, model.JobStatusCompleted, repository.StatusUpdate{FinalKey: finalKey})
}

func (s *jobService) MarkFailed(ctx context.Context, id, message string) (*model.Job, error) {
	return s.transition(ctx, id, model.JobStatusFailed, repository.StatusUpdate{Error: message})
}

// transition reads the job, validates the lifecycle edge, and writes the new
// status conditional on the status just read.
func (s *jobService) transition(ctx context.Context, id string, to model.JobStatus, fields repository.StatusUpdate) (*model.Job, error) {
	job, err := s.repo.FindJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := job.ValidateTransition(to); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateJobStatus(ctx, id, job.Status, to, fields)
	if err != nil {
		return nil, fmt.Errorf("update job %s to %s: %w", id, to, err)
	}
	s.log.Debug().Str("job_id", id).Str("from", string(job.Status)).Str("to", string(to)).Msg("job transition")
	return updated, nil
}

func (s *jobService) IncrementBatchProgress(ctx context.Context, batchID string) (*model.BatchJob, error) {
	defer logging.TraceDuration(s.log, "JobService.IncrementBatchProgress")()
	for attempt := 0; attempt <= batchProgressRetries; attempt++ {
		batch, err := s.repo.FindBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		next, status, err := model.NextBatchProgress(batch)
		if err != nil {
			return nil, err
		}
		updated, err := s.repo.UpdateBatchProgress(ctx, batchID, batch.CompletedCount, next, status)
		if errors.Is(err, domain.ErrConflict) {
			s.log.Debug().Str("batch_id", batchID).Int("attempt", attempt+1).Msg("batch counter raced, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update batch %s progress: %w", batchID, err)
		}
		return updated, nil
	}
	return nil, fmt.Errorf("increment batch %s: %w", batchID, domain.ErrConflict)
}
