package domain

import (
	"sync/atomic"
	"time"
)

// JobStatus enumerates the lifecycle states of a remote prediction job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	}
	return false
}

// SubmittedJob tracks one remote prediction after a successful submission.
// Only the poll loop that owns it may move it forward.
type SubmittedJob struct {
	ID             string
	SubmittedAt    time.Time
	Prompt         string
	ModelID        string
	SourceImageRef string

	status  JobStatus
	polling atomic.Bool
}

// NewSubmittedJob returns a job in the pending state.
func NewSubmittedJob(id string, submittedAt time.Time, prompt, modelID, sourceRef string) *SubmittedJob {
	return &SubmittedJob{
		ID:             id,
		SubmittedAt:    submittedAt,
		Prompt:         prompt,
		ModelID:        modelID,
		SourceImageRef: sourceRef,
		status:         JobStatusPending,
	}
}

// Status returns the current state.
func (j *SubmittedJob) Status() JobStatus {
	if j.status == "" {
		return JobStatusPending
	}
	return j.status
}

// Advance moves the job to next. It returns false when the job is already terminal.
func (j *SubmittedJob) Advance(next JobStatus) bool {
	if j.Status().Terminal() {
		return false
	}
	j.status = next
	return true
}

// Acquire marks the job as being polled. It fails if another loop already owns it.
func (j *SubmittedJob) Acquire() bool {
	return j.polling.CompareAndSwap(false, true)
}

// Release gives up ownership taken by Acquire.
func (j *SubmittedJob) Release() {
	j.polling.Store(false)
}

// QueueStatus enumerates states of an asynchronous generation job stored in the database.
type QueueStatus string

const (
	QueueStatusQueued    QueueStatus = "queued"
	QueueStatusRunning   QueueStatus = "running"
	QueueStatusSucceeded QueueStatus = "succeeded"
	QueueStatusFailed    QueueStatus = "failed"
	QueueStatusTimedOut  QueueStatus = "timed_out"
)

// GenerationJob is a queued generation processed by the worker.
type GenerationJob struct {
	ID           string
	OwnerID      string
	Locale       string
	Request      GenerationInput
	Status       QueueStatus
	PredictionID string
	GenerationID string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
