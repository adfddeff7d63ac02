// File: internal/infra/db/postgres/job_store.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/repository"
)

// Compile-time checks
var (
	_ repository.JobRepository  = (*jobStore)(nil)
	_ repository.ExpiredDeleter = (*jobStore)(nil)
)

const jobColumns = `id, user_id, status, locale, prompt, temp_key, final_key, error, batch_id, created_at, updated_at, expires_at`

const batchColumns = `id, user_id, status, shared_prompt, individual_prompts, child_job_ids, completed_count, total_count, created_at, updated_at, expires_at`

type jobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *jobStore {
	return &jobStore{pool: pool}
}

func (s *jobStore) CreateJob(ctx context.Context, job *model.Job) error {
	const q = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := s.pool.Exec(ctx, q,
		job.ID, job.UserID, job.Status, job.Locale, job.Prompt,
		job.TempKey, job.FinalKey, job.Error, job.BatchID,
		job.CreatedAt, job.UpdatedAt, job.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *jobStore) FindJob(ctx context.Context, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id=$1;`
	job, err := scanJob(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus performs the conditional write backing the job state
// machine: the row only changes when its status still equals expected.
// Zero rows means either the job vanished or another writer moved it first;
// a follow-up read picks the right error.
func (s *jobStore) UpdateJobStatus(ctx context.Context, id string, expected, next model.JobStatus, fields repository.StatusUpdate) (*model.Job, error) {
	const q = `
UPDATE jobs
   SET status=$3,
       temp_key=COALESCE(NULLIF($4,''), temp_key),
       final_key=COALESCE(NULLIF($5,''), final_key),
       error=COALESCE(NULLIF($6,''), error),
       updated_at=$7
 WHERE id=$1 AND status=$2
RETURNING ` + jobColumns + `;`
	job, err := scanJob(s.pool.QueryRow(ctx, q,
		id, expected, next, fields.TempKey, fields.FinalKey, fields.Error, time.Now()))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update job status: %w", err)
	}
	if _, err := s.FindJob(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrConflict
}

func (s *jobStore) FindJobsByBatch(ctx context.Context, batchID string) ([]*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE batch_id=$1 ORDER BY created_at;`
	rows, err := s.pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("find jobs by batch: %w", err)
	}
	defer rows.Close()
	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read batch jobs: %w", err)
	}
	return out, nil
}

func (s *jobStore) CreateBatch(ctx context.Context, batch *model.BatchJob, children []*model.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qb = `
INSERT INTO batch_jobs (` + batchColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`
	_, err = tx.Exec(ctx, qb,
		batch.ID, batch.UserID, batch.Status, batch.SharedPrompt,
		textArray(batch.IndividualPrompts), textArray(batch.ChildJobIDs),
		batch.CompletedCount, batch.TotalCount,
		batch.CreatedAt, batch.UpdatedAt, batch.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert batch: %w", err)
	}

	const qj = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	for _, job := range children {
		_, err = tx.Exec(ctx, qj,
			job.ID, job.UserID, job.Status, job.Locale, job.Prompt,
			job.TempKey, job.FinalKey, job.Error, job.BatchID,
			job.CreatedAt, job.UpdatedAt, job.ExpiresAt)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyExists
			}
			return fmt.Errorf("insert batch child %s: %w", job.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

func (s *jobStore) FindBatch(ctx context.Context, id string) (*model.BatchJob, error) {
	const q = `SELECT ` + batchColumns + ` FROM batch_jobs WHERE id=$1;`
	batch, err := scanBatch(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find batch: %w", err)
	}
	return batch, nil
}

// UpdateBatchProgress advances the completed counter with a compare-and-swap
// on its previous value, so two children finishing at once cannot both land
// the same increment.
func (s *jobStore) UpdateBatchProgress(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error) {
	const q = `
UPDATE batch_jobs
   SET completed_count=$3, status=$4, updated_at=$5
 WHERE id=$1 AND completed_count=$2
RETURNING ` + batchColumns + `;`
	batch, err := scanBatch(s.pool.QueryRow(ctx, q, id, expectedCount, newCount, status, time.Now()))
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update batch progress: %w", err)
	}
	if _, err := s.FindBatch(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrConflict
}

func (s *jobStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE expires_at <= $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	removed := tag.RowsAffected()
	tag, err = s.pool.Exec(ctx, `DELETE FROM batch_jobs WHERE expires_at <= $1;`, cutoff)
	if err != nil {
		return removed, fmt.Errorf("delete expired batches: %w", err)
	}
	return removed + tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status string
	err := row.Scan(
		&j.ID, &j.UserID, &status, &j.Locale, &j.Prompt,
		&j.TempKey, &j.FinalKey, &j.Error, &j.BatchID,
		&j.CreatedAt, &j.UpdatedAt, &j.ExpiresAt)
	if err != nil {
		return nil, err
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func scanBatch(row pgx.Row) (*model.BatchJob, error) {
	var b model.BatchJob
	var status string
	err := row.Scan(
		&b.ID, &b.UserID, &status, &b.SharedPrompt,
		&b.IndividualPrompts, &b.ChildJobIDs,
		&b.CompletedCount, &b.TotalCount,
		&b.CreatedAt, &b.UpdatedAt, &b.ExpiresAt)
	if err != nil {
		return nil, err
	}
	b.Status = model.JobStatus(status)
	return &b, nil
}

// textArray guards against nil slices: pgx encodes nil as NULL and the
// array columns are NOT NULL.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
