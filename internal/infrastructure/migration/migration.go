package migration

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
)

// RunMigrations executes all necessary database migrations on startup
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("Starting database migrations")

	for _, m := range Migrations() {
		if err := m.Up(ctx, pool); err != nil {
			slog.Error("Migration failed", "name", m.Name, "error", err)
			return err
		}
		slog.Info("Migration completed", "name", m.Name)
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// Migration represents a database migration
type Migration struct {
	Name string
	Up   func(ctx context.Context, pool *pgxpool.Pool) error
}

// Migrations lists every migration in the order it must run.
func Migrations() []Migration {
	return []Migration{
		{Name: "create_resume_jobs", Up: execStatement(createResumeJobs)},
		{Name: "create_resume_jobs_seq_index", Up: execStatement(createResumeJobsSeqIndex)},
		{Name: "create_resume_settings", Up: execStatement(createResumeSettings)},
	}
}

func execStatement(query string) func(ctx context.Context, pool *pgxpool.Pool) error {
	return func(ctx context.Context, pool *pgxpool.Pool) error {
		_, err := pool.Exec(ctx, query)
		return err
	}
}

const createResumeJobs = `
	CREATE TABLE IF NOT EXISTS resume_jobs (
		seq            BIGSERIAL,
		id             TEXT PRIMARY KEY,
		status         TEXT NOT NULL,
		origin_text    TEXT NOT NULL DEFAULT '',
		origin_context TEXT NOT NULL DEFAULT '',
		feedback       TEXT NOT NULL DEFAULT '',
		document       TEXT NOT NULL DEFAULT '',
		assessment     JSONB,
		artifact       BYTEA,
		error          TEXT NOT NULL DEFAULT '',
		trim_attempts  INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	);
`

const createResumeJobsSeqIndex = `
	CREATE UNIQUE INDEX IF NOT EXISTS resume_jobs_seq_idx ON resume_jobs (seq);
`

const createResumeSettings = `
	CREATE TABLE IF NOT EXISTS resume_settings (
		id         INTEGER PRIMARY KEY CHECK (id = 1),
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`
