package model

import (
	"fmt"
	"time"

	"photo-enhance-pipeline/internal/domain"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusEditing    JobStatus = "editing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobTTL is how long job records are retained before the expiry sweeper
// removes them.
const JobTTL = 90 * 24 * time.Hour

// transitions is the complete set of legal lifecycle edges. Terminal states
// have no outgoing edges; any non-terminal state may fail.
var transitions = map[JobStatus][]JobStatus{
	JobStatusQueued:     {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusEditing, JobStatusFailed},
	JobStatusEditing:    {JobStatusCompleted, JobStatusFailed},
	JobStatusCompleted:  {},
	JobStatusFailed:     {},
}

func (s JobStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s JobStatus) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// InvalidTransitionError reports an attempt to move a job between two states
// the lifecycle does not connect. It matches domain.ErrInvalidTransition via
// errors.Is.
type InvalidTransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == domain.ErrInvalidTransition
}

// ValidateTransition returns nil when from -> to is a legal lifecycle edge.
func ValidateTransition(from, to JobStatus) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// Job is a single photo enhancement request moving through the pipeline.
// TempKey and FinalKey reference objects in blob storage; Error holds the
// failure message once the job lands in the failed state. BatchID is empty
// for standalone jobs.
type Job struct {
	ID        string
	UserID    string
	Status    JobStatus
	Locale    string
	Prompt    string
	TempKey   string
	FinalKey  string
	Error     string
	BatchID   string
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

type NewJobInput struct {
	UserID  string
	Prompt  string
	Locale  string
	BatchID string
}

func NewJob(in NewJobInput) (*Job, error) {
	if in.UserID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if in.Locale == "" {
		in.Locale = "en"
	}
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Status:    JobStatusQueued,
		Locale:    in.Locale,
		Prompt:    in.Prompt,
		BatchID:   in.BatchID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(JobTTL),
	}, nil
}

func (j *Job) Terminal() bool { return j.Status.Terminal() }

// ValidateTransition checks that the job may move to the given status.
func (j *Job) ValidateTransition(to JobStatus) error {
	return ValidateTransition(j.Status, to)
}
