package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"resume-forge/internal/domain"
)

const jobColumns = `id, status, origin_text, origin_context, feedback, document, assessment, artifact, error, trim_attempts, created_at, updated_at`

// PostgresStore keeps job history in the resume_jobs table. The seq column
// orders jobs by insertion.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts Options
}

func NewPostgresStore(pool *pgxpool.Pool, opts Options) *PostgresStore {
	return &PostgresStore{pool: pool, opts: opts.withDefaults()}
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j          domain.Job
		status     string
		assessment []byte
	)
	err := row.Scan(&j.ID, &status, &j.OriginText, &j.OriginContext, &j.Feedback, &j.Document,
		&assessment, &j.Artifact, &j.Error, &j.TrimAttempts, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Status = domain.Status(status)
	if len(assessment) > 0 && string(assessment) != "null" {
		if err := json.Unmarshal(assessment, &j.Assessment); err != nil {
			return nil, fmt.Errorf("decode assessment for job %s: %w", j.ID, err)
		}
	}
	if len(j.Artifact) == 0 {
		j.Artifact = nil
	}
	return &j, nil
}

func assessmentJSON(a domain.Assessment) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (s *PostgresStore) Create(ctx context.Context, originText, originContext string) (*domain.Job, error) {
	j := domain.NewJob(s.opts.NewID(), originText, originContext, s.opts.Now())
	_, err := s.pool.Exec(ctx, `INSERT INTO resume_jobs (id, status, origin_text, origin_context, trim_attempts, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		j.ID, string(j.Status), j.OriginText, j.OriginContext, j.TrimAttempts, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if err := s.EvictOldest(ctx, s.opts.MaxHistory); err != nil {
		return nil, err
	}
	return j, nil
}

// Transition locks the row, merges u and writes the whole record back.
func (s *PostgresStore) Transition(ctx context.Context, id string, u domain.JobUpdate) (*domain.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	j, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM resume_jobs WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	u.Apply(j, s.opts.Now())
	assessment, err := assessmentJSON(j.Assessment)
	if err != nil {
		return nil, fmt.Errorf("encode assessment: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE resume_jobs SET status = $2, feedback = $3, document = $4, assessment = $5,
		artifact = $6, error = $7, trim_attempts = $8, updated_at = $9 WHERE id = $1`,
		j.ID, string(j.Status), j.Feedback, j.Document, assessment, j.Artifact, j.Error, j.TrimAttempts, j.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM resume_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM resume_jobs ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EvictOldest(ctx context.Context, max int) error {
	if max < 0 {
		max = 0
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM resume_jobs WHERE seq NOT IN (
		SELECT seq FROM resume_jobs ORDER BY seq DESC LIMIT $1)`, max)
	if err != nil {
		return fmt.Errorf("evict jobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resume_jobs`); err != nil {
		return fmt.Errorf("clear jobs: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resume_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// Settings returns the settings half of the store.
func (s *PostgresStore) Settings() *PostgresSettings {
	return &PostgresSettings{pool: s.pool}
}

// PostgresSettings keeps the single settings record in resume_settings.
type PostgresSettings struct {
	pool *pgxpool.Pool
}

func (p *PostgresSettings) Get(ctx context.Context) (domain.Settings, error) {
	var (
		st   domain.Settings
		data []byte
	)
	err := p.pool.QueryRow(ctx, `SELECT data FROM resume_settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("get settings: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decode settings: %w", err)
	}
	return st, nil
}

func (p *PostgresSettings) Set(ctx context.Context, st domain.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = p.pool.Exec(ctx, `INSERT INTO resume_settings (id, data, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, data)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (p *PostgresSettings) Remove(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM resume_settings WHERE id = 1`); err != nil {
		return fmt.Errorf("remove settings: %w", err)
	}
	return nil
}
