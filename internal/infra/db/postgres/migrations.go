// File: internal/infra/db/postgres/migrations.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// migrations holds the schema statements applied in order on startup. Every
// statement is idempotent so reruns against an existing database are safe.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "jobs table",
		sql: `
CREATE TABLE IF NOT EXISTS jobs (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    status     TEXT NOT NULL,
    locale     TEXT NOT NULL DEFAULT 'en',
    prompt     TEXT NOT NULL DEFAULT '',
    temp_key   TEXT NOT NULL DEFAULT '',
    final_key  TEXT NOT NULL DEFAULT '',
    error      TEXT NOT NULL DEFAULT '',
    batch_id   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);`,
	},
	{
		name: "jobs batch index",
		sql:  `CREATE INDEX IF NOT EXISTS idx_jobs_batch_id ON jobs (batch_id) WHERE batch_id <> '';`,
	},
	{
		name: "jobs expiry index",
		sql:  `CREATE INDEX IF NOT EXISTS idx_jobs_expires_at ON jobs (expires_at);`,
	},
	{
		name: "batch_jobs table",
		sql: `
CREATE TABLE IF NOT EXISTS batch_jobs (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT NOT NULL,
    status             TEXT NOT NULL,
    shared_prompt      TEXT NOT NULL DEFAULT '',
    individual_prompts TEXT[] NOT NULL DEFAULT '{}',
    child_job_ids      TEXT[] NOT NULL DEFAULT '{}',
    completed_count    INT NOT NULL DEFAULT 0,
    total_count        INT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL,
    expires_at         TIMESTAMPTZ NOT NULL
);`,
	},
	{
		name: "batch_jobs expiry index",
		sql:  `CREATE INDEX IF NOT EXISTS idx_batch_jobs_expires_at ON batch_jobs (expires_at);`,
	},
}

// RunMigrations applies the schema statements in order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %q: %w", m.name, err)
		}
	}
	return nil
}
