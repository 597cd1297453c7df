package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/rebuild"
)

// jobStore implements rebuild.JobStore, so rebuild jobs survive a
// process restart and stay queryable afterwards.
type jobStore struct {
	store *Store
}

var _ rebuild.JobStore = (*jobStore)(nil)

func (j *jobStore) CreateJob(ctx context.Context, job *rebuild.Job) error {
	sourcesJSON, err := json.Marshal(job.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}
	_, err = j.store.db.ExecContext(ctx, `
		INSERT INTO rebuild_jobs (
			id, tenant_id, sources, full_rebuild, state,
			progress_current, progress_total,
			documents_processed, documents_failed, chunks_indexed, chunks_skipped,
			sources_failed, last_error, created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.TenantID, string(sourcesJSON), job.FullRebuild, string(job.State),
		job.ProgressCurrent, job.ProgressTotal,
		job.DocumentsProcessed, job.DocumentsFailed, job.ChunksIndexed, job.ChunksSkipped,
		job.SourcesFailed, job.LastError, job.CreatedAt.UTC(),
		nullTime(job.StartedAt), nullTime(job.CompletedAt))
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (j *jobStore) GetJob(ctx context.Context, jobID string) (*rebuild.Job, error) {
	row := j.store.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, sources, full_rebuild, state,
		       progress_current, progress_total,
		       documents_processed, documents_failed, chunks_indexed, chunks_skipped,
		       sources_failed, last_error, created_at, started_at, completed_at
		FROM rebuild_jobs WHERE id = ?
	`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, rebuild.ErrJobNotFound
	}
	return job, err
}

func (j *jobStore) UpdateJob(ctx context.Context, job *rebuild.Job) error {
	res, err := j.store.db.ExecContext(ctx, `
		UPDATE rebuild_jobs SET
			state = ?,
			progress_current = ?, progress_total = ?,
			documents_processed = ?, documents_failed = ?,
			chunks_indexed = ?, chunks_skipped = ?,
			sources_failed = ?, last_error = ?,
			started_at = ?, completed_at = ?
		WHERE id = ?
	`, string(job.State),
		job.ProgressCurrent, job.ProgressTotal,
		job.DocumentsProcessed, job.DocumentsFailed,
		job.ChunksIndexed, job.ChunksSkipped,
		job.SourcesFailed, job.LastError,
		nullTime(job.StartedAt), nullTime(job.CompletedAt), job.ID)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting updated rows: %w", err)
	}
	if affected == 0 {
		return rebuild.ErrJobNotFound
	}
	return nil
}

func (j *jobStore) ListJobs(ctx context.Context, tenantID string) ([]*rebuild.Job, error) {
	rows, err := j.store.db.QueryContext(ctx, `
		SELECT id, tenant_id, sources, full_rebuild, state,
		       progress_current, progress_total,
		       documents_processed, documents_failed, chunks_indexed, chunks_skipped,
		       sources_failed, last_error, created_at, started_at, completed_at
		FROM rebuild_jobs WHERE tenant_id = ? ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*rebuild.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*rebuild.Job, error) {
	var job rebuild.Job
	var sourcesJSON, state string
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&job.ID, &job.TenantID, &sourcesJSON, &job.FullRebuild, &state,
		&job.ProgressCurrent, &job.ProgressTotal,
		&job.DocumentsProcessed, &job.DocumentsFailed, &job.ChunksIndexed, &job.ChunksSkipped,
		&job.SourcesFailed, &job.LastError, &job.CreatedAt, &startedAt, &completedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	var sources []chunking.SourceType
	if err := json.Unmarshal([]byte(sourcesJSON), &sources); err != nil {
		return nil, fmt.Errorf("unmarshaling sources: %w", err)
	}
	job.Sources = sources
	job.State = rebuild.JobState(state)
	job.CreatedAt = job.CreatedAt.UTC()
	if startedAt.Valid {
		job.StartedAt = startedAt.Time.UTC()
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time.UTC()
	}
	return &job, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
