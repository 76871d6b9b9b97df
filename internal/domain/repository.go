package domain

import (
	"context"
	"time"
)

// GenerationRepository stores completed generations.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	GetByID(ctx context.Context, ownerID, id string) (*Generation, error)
	ListRecent(ctx context.Context, ownerID string, limit int) ([]Generation, error)
}

// NotificationRepository stores notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, ownerID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkAllRead(ctx context.Context, ownerID string) (int64, error)
}

// JobRepository persists queued generation jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, job *GenerationJob) error
	Claim(ctx context.Context) (*GenerationJob, error)
	GetByID(ctx context.Context, ownerID, id string) (*GenerationJob, error)
	MarkSubmitted(ctx context.Context, id, predictionID string) error
	Finish(ctx context.Context, id string, status QueueStatus, generationID, errMsg string) error
	FailStale(ctx context.Context, olderThan time.Duration, errMsg string) (int64, error)
}
