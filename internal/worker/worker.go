// Package worker drains the generation job queue.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"brandkit/internal/domain"
	"brandkit/internal/infra/metrics"
)

const staleMessage = "worker stopped before the job finished"

// Queue is the subset of the job repository the worker needs.
type Queue interface {
	Claim(ctx context.Context) (*domain.GenerationJob, error)
	FailStale(ctx context.Context, olderThan time.Duration, errMsg string) (int64, error)
}

// Runner executes a claimed job to a terminal status.
type Runner interface {
	RunJob(ctx context.Context, job *domain.GenerationJob) (domain.QueueStatus, error)
}

type Options struct {
	Concurrency  int
	IdleInterval time.Duration
	// StaleAfter marks running jobs older than this as failed on startup. Zero disables the sweep.
	StaleAfter time.Duration
}

type Worker struct {
	queue  Queue
	runner Runner
	opts   Options
	logger zerolog.Logger
}

func New(queue Queue, runner Runner, opts Options, logger zerolog.Logger) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = 2 * time.Second
	}
	return &Worker{queue: queue, runner: runner, opts: opts, logger: logger}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.opts.StaleAfter > 0 {
		n, err := w.queue.FailStale(ctx, w.opts.StaleAfter, staleMessage)
		if err != nil {
			w.logger.Error().Err(err).Msg("worker: stale sweep failed")
		} else if n > 0 {
			w.logger.Warn().Int64("jobs", n).Msg("worker: failed stale jobs")
		}
	}

	w.logger.Info().Int("concurrency", w.opts.Concurrency).Msg("worker: started")
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.opts.Concurrency; i++ {
		slot := i
		g.Go(func() error { return w.loop(gctx, slot) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, slot int) error {
	logger := w.logger.With().Int("slot", slot).Logger()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("worker: failed to claim job")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.opts.IdleInterval):
		}
	}
}

// ProcessNext claims and runs one job. It reports false when the queue was empty or the claim failed.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	logger := w.logger.With().Str("job_id", job.ID).Str("user_id", job.OwnerID).Logger()
	logger.Info().Msg("worker: picked job")
	status, runErr := w.runner.RunJob(ctx, job)
	metrics.RecordWorkerJob(string(status))
	if runErr != nil {
		logger.Warn().Err(runErr).Str("status", string(status)).Msg("worker: job failed")
		return true, nil
	}
	logger.Info().Str("status", string(status)).Msg("worker: job finished")
	return true, nil
}
