package model

import (
	"time"

	"photo-enhance-pipeline/internal/domain"

	"github.com/google/uuid"
)

// BatchJob tracks a group of jobs submitted together. CompletedCount is only
// ever advanced through a compare-and-swap on the previous value, so
// concurrent children cannot lose increments. A batch is processing until
// every child has reached a terminal state, then completed.
type BatchJob struct {
	ID                string
	UserID            string
	Status            JobStatus
	SharedPrompt      string
	IndividualPrompts []string
	ChildJobIDs       []string
	CompletedCount    int
	TotalCount        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         time.Time
}

type NewBatchInput struct {
	UserID            string
	FileCount         int
	SharedPrompt      string
	IndividualPrompts []string
}

func NewBatchJob(in NewBatchInput) (*BatchJob, error) {
	if in.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if in.FileCount < 1 {
		return nil, domain.ErrInvalidArgument
	}
	if len(in.IndividualPrompts) > 0 && len(in.IndividualPrompts) != in.FileCount {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &BatchJob{
		ID:                uuid.NewString(),
		UserID:            in.UserID,
		Status:            JobStatusProcessing,
		SharedPrompt:      in.SharedPrompt,
		IndividualPrompts: in.IndividualPrompts,
		ChildJobIDs:       make([]string, 0, in.FileCount),
		CompletedCount:    0,
		TotalCount:        in.FileCount,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(JobTTL),
	}, nil
}

// PromptFor returns the prompt for the i-th file: its individual prompt when
// the batch carries one, otherwise the shared prompt.
func (b *BatchJob) PromptFor(i int) string {
	if i >= 0 && i < len(b.IndividualPrompts) {
		return b.IndividualPrompts[i]
	}
	return b.SharedPrompt
}

func (b *BatchJob) Complete() bool { return b.CompletedCount >= b.TotalCount }

// NextBatchProgress computes the counter and status a batch moves to when one
// more child finishes. It never mutates the batch; callers persist the result
// with a conditional write keyed on the old counter. Incrementing a batch
// that already reached its total is an error.
func NextBatchProgress(b *BatchJob) (int, JobStatus, error) {
	if b.CompletedCount >= b.TotalCount {
		return b.CompletedCount, b.Status, domain.ErrBatchComplete
	}
	next := b.CompletedCount + 1
	status := b.Status
	if next == b.TotalCount {
		status = JobStatusCompleted
	}
	return next, status, nil
}
