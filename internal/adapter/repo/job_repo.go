package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"brandkit/internal/domain"
	"brandkit/internal/infra"
	"brandkit/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Enqueue inserts a queued job. The uploaded image bytes are never stored; only the reference is.
func (r *JobRepositoryPG) Enqueue(ctx context.Context, job *domain.GenerationJob) error {
	req := job.Request
	req.SourceImage = nil
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode job request: %w", err)
	}
	var status string
	row := r.sql.QueryRow(ctx, sqlinline.QEnqueueGenerationJob, job.OwnerID, job.Locale, raw)
	if err := row.Scan(&job.ID, &status, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return err
	}
	job.Status = domain.QueueStatus(status)
	return nil
}

// Claim takes the oldest queued job. It returns domain.ErrNotFound when the queue is empty.
func (r *JobRepositoryPG) Claim(ctx context.Context) (*domain.GenerationJob, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QClaimGenerationJob))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// GetByID fetches a job owned by ownerID.
func (r *JobRepositoryPG) GetByID(ctx context.Context, ownerID, id string) (*domain.GenerationJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJob, id, ownerID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// MarkSubmitted records the remote prediction id of a running job.
func (r *JobRepositoryPG) MarkSubmitted(ctx context.Context, id, predictionID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationJobSubmitted, id, predictionID)
	return err
}

// Finish stores the terminal status of a running job.
func (r *JobRepositoryPG) Finish(ctx context.Context, id string, status domain.QueueStatus, generationID, errMsg string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFinishGenerationJob, id, string(status), generationID, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FailStale fails running jobs not updated within olderThan.
func (r *JobRepositoryPG) FailStale(ctx context.Context, olderThan time.Duration, errMsg string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailStaleGenerationJobs, olderThan.Seconds(), errMsg)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanJob(s scanner) (*domain.GenerationJob, error) {
	var (
		job    domain.GenerationJob
		raw    []byte
		status string
	)
	if err := s.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Locale,
		&raw,
		&status,
		&job.PredictionID,
		&job.GenerationID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.QueueStatus(status)
	if err := json.Unmarshal(raw, &job.Request); err != nil {
		return nil, fmt.Errorf("decode request for job %s: %w", job.ID, err)
	}
	return &job, nil
}
