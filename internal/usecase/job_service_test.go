//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/repository"
	"photo-enhance-pipeline/internal/usecase"
)

func TestJobService_CreateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a queued job", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())

		job, err := svc.CreateJob(ctx, model.NewJobInput{UserID: "user-1", Prompt: "warmer tones", Locale: "fa"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if job.Status != model.JobStatusQueued {
			t.Errorf("expected new job to be 'queued', but got '%s'", job.Status)
		}
		if job.ID == "" {
			t.Error("expected a generated job id")
		}

		stored, err := repo.FindJob(ctx, job.ID)
		if err != nil {
			t.Fatalf("expected job to be stored, but got: %v", err)
		}
		if stored.Prompt != "warmer tones" || stored.Locale != "fa" {
			t.Errorf("stored job mismatch: %+v", stored)
		}
	})

	t.Run("should reject a missing user id without touching the store", func(t *testing.T) {
		repo := NewMockJobRepo()
		created := false
		repo.CreateJobFunc = func(ctx context.Context, job *model.Job) error {
			created = true
			return nil
		}
		svc := usecase.NewJobService(repo, newTestLogger())

		_, err := svc.CreateJob(ctx, model.NewJobInput{Prompt: "no user"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, but got: %v", err)
		}
		if created {
			t.Error("expected the store to stay untouched")
		}
	})
}

func TestJobService_CreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should create the batch and its children together", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())

		prompts := []string{"brighten", "crop tighter", "warmer"}
		batch, children, err := svc.CreateBatch(ctx, model.NewBatchInput{
			UserID:            "user-1",
			FileCount:         3,
			IndividualPrompts: prompts,
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if batch.TotalCount != 3 || batch.CompletedCount != 0 {
			t.Errorf("unexpected batch counters: %+v", batch)
		}
		if len(children) != 3 || len(batch.ChildJobIDs) != 3 {
			t.Fatalf("expected 3 children, got %d jobs and %d ids", len(children), len(batch.ChildJobIDs))
		}
		for i, child := range children {
			if child.Prompt != prompts[i] {
				t.Errorf("child %d: expected prompt %q, but got %q", i, prompts[i], child.Prompt)
			}
			if child.BatchID != batch.ID {
				t.Errorf("child %d: expected batch id %s, but got %s", i, batch.ID, child.BatchID)
			}
			if batch.ChildJobIDs[i] != child.ID {
				t.Errorf("child %d: id not recorded on the batch", i)
			}
		}

		listed, err := svc.JobsInBatch(ctx, batch.ID)
		if err != nil {
			t.Fatalf("JobsInBatch failed: %v", err)
		}
		if len(listed) != 3 {
			t.Errorf("expected 3 stored children, but got %d", len(listed))
		}
	})

	t.Run("should use the shared prompt when no individual prompts are given", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())

		_, children, err := svc.CreateBatch(ctx, model.NewBatchInput{
			UserID:       "user-1",
			FileCount:    2,
			SharedPrompt: "film look",
		})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		for i, child := range children {
			if child.Prompt != "film look" {
				t.Errorf("child %d: expected shared prompt, but got %q", i, child.Prompt)
			}
		}
	})

	t.Run("should reject a prompt count mismatch", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())

		_, _, err := svc.CreateBatch(ctx, model.NewBatchInput{
			UserID:            "user-1",
			FileCount:         2,
			IndividualPrompts: []string{"a", "b", "c"},
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, but got: %v", err)
		}
	})
}

func TestJobService_Transitions(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *MockJobRepo, status model.JobStatus) *model.Job {
		job, _ := model.NewJob(model.NewJobInput{UserID: "user-1"})
		job.Status = status
		repo.seedJob(job)
		return job
	}

	t.Run("should mark a queued job processing and record the upload key", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		job := seed(repo, model.JobStatusQueued)

		updated, err := svc.MarkProcessing(ctx, job.ID, "uploads/user-1/photo.png")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if updated.Status != model.JobStatusProcessing {
			t.Errorf("expected 'processing', but got '%s'", updated.Status)
		}
		if updated.TempKey != "uploads/user-1/photo.png" {
			t.Errorf("expected temp key recorded, but got %q", updated.TempKey)
		}
		if !updated.UpdatedAt.After(job.UpdatedAt) {
			t.Error("expected the update timestamp to advance")
		}
		if len(repo.StatusCalls) != 1 || repo.StatusCalls[0].Expected != model.JobStatusQueued {
			t.Errorf("expected one conditional write keyed on 'queued', got %+v", repo.StatusCalls)
		}
	})

	t.Run("should complete an editing job with its final key", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		job := seed(repo, model.JobStatusEditing)

		updated, err := svc.MarkCompleted(ctx, job.ID, "results/user-1/photo.png")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if updated.Status != model.JobStatusCompleted || updated.FinalKey != "results/user-1/photo.png" {
			t.Errorf("unexpected job after completion: %+v", updated)
		}
	})

	t.Run("should record the failure message", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		job := seed(repo, model.JobStatusProcessing)

		updated, err := svc.MarkFailed(ctx, job.ID, "optimize blew up")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if updated.Status != model.JobStatusFailed || updated.Error != "optimize blew up" {
			t.Errorf("unexpected job after failure: %+v", updated)
		}
	})

	t.Run("should reject an illegal transition without touching the store", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		job := seed(repo, model.JobStatusCompleted)

		_, err := svc.MarkFailed(ctx, job.ID, "too late")
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, but got: %v", err)
		}
		if len(repo.StatusCalls) != 0 {
			t.Errorf("expected no conditional writes, got %+v", repo.StatusCalls)
		}

		stored, _ := repo.FindJob(ctx, job.ID)
		if stored.Status != model.JobStatusCompleted {
			t.Errorf("expected job to stay 'completed', but got '%s'", stored.Status)
		}
	})

	t.Run("should surface a concurrent status change as a conflict", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		job := seed(repo, model.JobStatusQueued)

		// Another worker moves the job between our read and our write.
		repo.UpdateJobStatusFunc = func(ctx context.Context, id string, expected, next model.JobStatus, fields repository.StatusUpdate) (*model.Job, error) {
			return nil, domain.ErrConflict
		}

		_, err := svc.MarkProcessing(ctx, job.ID, "uploads/user-1/photo.png")
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, but got: %v", err)
		}
	})

	t.Run("should propagate a missing job", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())

		_, err := svc.MarkEditing(ctx, "no-such-job")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, but got: %v", err)
		}
	})
}

func TestJobService_IncrementBatchProgress(t *testing.T) {
	ctx := context.Background()

	seedBatch := func(repo *MockJobRepo, completed, total int) *model.BatchJob {
		batch, _ := model.NewBatchJob(model.NewBatchInput{UserID: "user-1", FileCount: total})
		batch.CompletedCount = completed
		repo.seedBatch(batch)
		return batch
	}

	t.Run("should advance the counter", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		batch := seedBatch(repo, 0, 3)

		updated, err := svc.IncrementBatchProgress(ctx, batch.ID)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if updated.CompletedCount != 1 {
			t.Errorf("expected counter 1, but got %d", updated.CompletedCount)
		}
		if updated.Status != model.JobStatusProcessing {
			t.Errorf("expected batch to stay 'processing', but got '%s'", updated.Status)
		}
	})

	t.Run("should complete the batch on the last child", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		batch := seedBatch(repo, 1, 2)

		updated, err := svc.IncrementBatchProgress(ctx, batch.ID)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if updated.CompletedCount != 2 || updated.Status != model.JobStatusCompleted {
			t.Errorf("expected a completed batch at 2/2, but got %d/%s", updated.CompletedCount, updated.Status)
		}
	})

	t.Run("should retry a raced counter with a fresh read", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		batch := seedBatch(repo, 0, 2)

		attempts := 0
		repo.UpdateBatchProgressFunc = func(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error) {
			attempts++
			if attempts == 1 {
				return nil, domain.ErrConflict
			}
			cp := *batch
			cp.CompletedCount = newCount
			cp.Status = status
			return &cp, nil
		}

		updated, err := svc.IncrementBatchProgress(ctx, batch.ID)
		if err != nil {
			t.Fatalf("expected the retry to land, but got: %v", err)
		}
		if attempts != 2 {
			t.Errorf("expected 2 write attempts, but got %d", attempts)
		}
		if updated.CompletedCount != 1 {
			t.Errorf("expected counter 1, but got %d", updated.CompletedCount)
		}
	})

	t.Run("should give up once retries are exhausted", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		batch := seedBatch(repo, 0, 2)

		attempts := 0
		repo.UpdateBatchProgressFunc = func(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error) {
			attempts++
			return nil, domain.ErrConflict
		}

		_, err := svc.IncrementBatchProgress(ctx, batch.ID)
		if !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict after exhausted retries, but got: %v", err)
		}
		if attempts < 2 {
			t.Errorf("expected multiple attempts before giving up, but got %d", attempts)
		}
	})

	t.Run("should not lose an update when children finish together", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		batch := seedBatch(repo, 0, 2)

		var wg sync.WaitGroup
		var mu sync.Mutex
		completions := 0
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				updated, err := svc.IncrementBatchProgress(ctx, batch.ID)
				if err != nil {
					t.Errorf("concurrent increment failed: %v", err)
					return
				}
				if updated.Status == model.JobStatusCompleted {
					mu.Lock()
					completions++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		stored, err := repo.FindBatch(ctx, batch.ID)
		if err != nil {
			t.Fatalf("FindBatch failed: %v", err)
		}
		if stored.CompletedCount != 2 || stored.Status != model.JobStatusCompleted {
			t.Errorf("expected batch 2/completed, but got %d/%s", stored.CompletedCount, stored.Status)
		}
		if completions != 1 {
			t.Errorf("expected exactly one increment to observe completion, but got %d", completions)
		}
	})

	t.Run("should refuse to increment a finished batch", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())
		batch := seedBatch(repo, 2, 2)

		_, err := svc.IncrementBatchProgress(ctx, batch.ID)
		if !errors.Is(err, domain.ErrBatchComplete) {
			t.Fatalf("expected ErrBatchComplete, but got: %v", err)
		}
	})

	t.Run("should propagate a missing batch", func(t *testing.T) {
		repo := NewMockJobRepo()
		svc := usecase.NewJobService(repo, newTestLogger())

		_, err := svc.IncrementBatchProgress(ctx, "no-such-batch")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, but got: %v", err)
		}
	})
}
