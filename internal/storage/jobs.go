package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/facetag/internal/models"
)

const jobColumns = `id, job_type, event_id, media_ids, status, priority, result, error, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	j := &models.Job{}
	var result []byte
	err := row.Scan(&j.ID, &j.JobType, &j.EventID, &j.MediaIDs, &j.Status, &j.Priority,
		&result, &j.Error, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.Result = result
	return j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, j *models.Job) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	if j.Priority == "" {
		j.Priority = models.PriorityNormal
	}

	_, err := s.q.Exec(ctx,
		`INSERT INTO ml_jobs (id, job_type, event_id, media_ids, status, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.JobType, j.EventID, j.MediaIDs, j.Status, j.Priority, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.q.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ml_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// GetActiveJob returns the pending or processing job of the given type for an
// event, or nil.
func (s *PostgresStore) GetActiveJob(ctx context.Context, eventID uuid.UUID, jobType models.JobType) (*models.Job, error) {
	j, err := scanJob(s.q.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ml_jobs
		 WHERE event_id = $1 AND job_type = $2 AND status IN ('pending', 'processing')
		 ORDER BY created_at DESC LIMIT 1`,
		eventID, jobType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return j, nil
}

// CreateClusterJobIfAbsent enforces the one-active-cluster-job-per-event
// policy. Concurrent callers serialize on a per-event advisory lock so only
// one can pass the existence check; a partial unique index backs this up at
// the schema level.
func (s *PostgresStore) CreateClusterJobIfAbsent(ctx context.Context, j *models.Job) (created bool, existing *models.Job, err error) {
	err = s.WithTx(ctx, func(tx *PostgresStore) error {
		if err := tx.lockEventScope(ctx, j.EventID, "cluster-enqueue"); err != nil {
			return err
		}

		active, err := tx.GetActiveJob(ctx, j.EventID, models.JobTypeCluster)
		if err != nil {
			return err
		}
		if active != nil {
			existing = active
			return nil
		}

		if err := tx.CreateJob(ctx, j); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, existing, err
}

// UpdateJobStatus applies a status transition and returns whether anything
// changed. Terminal states are sticky and reapplying the current status is a
// no-op, which makes worker callback retries safe to replay.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, result json.RawMessage, errMsg string) (bool, error) {
	var completedAt *time.Time
	if status == models.JobStatusCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE ml_jobs
		 SET status = $2,
		     result = COALESCE($3, result),
		     error = COALESCE(NULLIF($4, ''), error),
		     completed_at = COALESCE($5, completed_at),
		     updated_at = $6
		 WHERE id = $1 AND status <> $2 AND status NOT IN ('completed', 'failed')`,
		id, status, []byte(result), errMsg, completedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update job status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LatestClusterJob returns the most relevant clustering job for an event,
// preferring terminal jobs over queued ones for display purposes.
func (s *PostgresStore) LatestClusterJob(ctx context.Context, eventID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.q.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ml_jobs
		 WHERE event_id = $1 AND job_type = 'cluster'
		 ORDER BY (status IN ('completed', 'failed')) DESC, created_at DESC
		 LIMIT 1`,
		eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest cluster job: %w", err)
	}
	return j, nil
}
