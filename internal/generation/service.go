package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"brandkit/internal/domain"
	"brandkit/internal/infra"
	"brandkit/internal/prediction"
	"brandkit/pkg/zip"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50

	notificationLimit = 50
	maxDownloadBytes  = 32 << 20
)

// Predictor runs remote prediction jobs. *prediction.Client implements it.
type Predictor interface {
	UploadSource(ctx context.Context, img *domain.ImageUpload) (string, error)
	Submit(ctx context.Context, req domain.GenerationRequest) (*domain.SubmittedJob, error)
	AwaitCompletion(ctx context.Context, job *domain.SubmittedJob, opts prediction.PollOptions) (domain.GenerationResult, error)
}

// Options wires a Service.
type Options struct {
	Predictor     Predictor
	Generations   domain.GenerationRepository
	Notifications domain.NotificationRepository
	Jobs          domain.JobRepository
	HTTPClient    *http.Client
	Poll          prediction.PollOptions
	Logger        *infra.Logger
}

// Service turns generation requests into persisted results and owner notifications.
type Service struct {
	predictor     Predictor
	generations   domain.GenerationRepository
	notifications domain.NotificationRepository
	jobs          domain.JobRepository
	httpClient    *http.Client
	poll          prediction.PollOptions
	logger        zerolog.Logger
	maxDownload   int
}

func NewService(opts Options) (*Service, error) {
	if opts.Predictor == nil {
		return nil, errors.New("generation: predictor is required")
	}
	if opts.Generations == nil || opts.Notifications == nil {
		return nil, errors.New("generation: repositories are required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "generation").Logger()
	}
	return &Service{
		predictor:     opts.Predictor,
		generations:   opts.Generations,
		notifications: opts.Notifications,
		jobs:          opts.Jobs,
		httpClient:    httpClient,
		poll:          opts.Poll,
		logger:        logger,
		maxDownload:   maxDownloadBytes,
	}, nil
}

// Generate runs one generation synchronously. The caller is notified of the
// outcome once the request has passed validation.
func (s *Service) Generate(ctx context.Context, id domain.Identity, in domain.GenerationInput) (*domain.Generation, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	req, err := domain.NewGenerationRequest(in)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, id, req, nil)
}

// run submits req, waits for it and persists the outcome. onSubmitted, when set,
// observes the remote job id before polling starts.
func (s *Service) run(ctx context.Context, id domain.Identity, req domain.GenerationRequest, onSubmitted func(predictionID string)) (*domain.Generation, error) {
	job, err := s.predictor.Submit(ctx, req)
	if err != nil {
		s.notifyFailure(ctx, id, err)
		return nil, err
	}
	if onSubmitted != nil {
		onSubmitted(job.ID)
	}
	result, err := s.predictor.AwaitCompletion(ctx, job, s.poll)
	if err != nil {
		s.notifyFailure(ctx, id, err)
		return nil, err
	}

	gen := &domain.Generation{
		OwnerID:      id.UserID,
		Prompt:       req.Prompt(),
		ModelID:      job.ModelID,
		Mode:         req.Mode(),
		Styles:       req.StyleTags(),
		PredictionID: job.ID,
		Results:      result,
	}
	if err := s.generations.Create(context.WithoutCancel(ctx), gen); err != nil {
		s.logger.Error().Err(err).Str("prediction_id", job.ID).Str("user_id", id.UserID).Msg("generation: persist failed")
		return nil, fmt.Errorf("save generation: %w", err)
	}
	s.notify(ctx, id, domain.NotificationSuccess, successMessage(id.Locale, len(result)))
	s.logger.Info().Str("generation_id", gen.ID).Str("prediction_id", job.ID).Int("images", len(result)).Msg("generation: completed")
	return gen, nil
}

// History returns the caller's most recent results, newest generation first.
func (s *Service) History(ctx context.Context, id domain.Identity, limit int) ([]domain.HistoryItem, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	gens, err := s.generations.ListRecent(ctx, id.UserID, limit)
	if err != nil {
		return nil, err
	}
	items := make([]domain.HistoryItem, 0, len(gens))
	for _, g := range gens {
		for _, r := range g.Results {
			items = append(items, domain.HistoryItem{ResultImage: r, GenerationID: g.ID, CreatedAt: g.CreatedAt})
		}
	}
	return items, nil
}

// Enqueue validates in, uploads a pending source image and queues the job for the worker.
func (s *Service) Enqueue(ctx context.Context, id domain.Identity, in domain.GenerationInput) (*domain.GenerationJob, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, errors.New("generation: job queue is not configured")
	}
	req, err := domain.NewGenerationRequest(in)
	if err != nil {
		return nil, err
	}
	if req.NeedsUpload() {
		ref, err := s.predictor.UploadSource(ctx, req.SourceImage())
		if err != nil {
			return nil, err
		}
		req = req.WithSourceImageRef(ref)
	}
	job := &domain.GenerationJob{
		OwnerID: id.UserID,
		Locale:  MatchLocale(id.Locale).String(),
		Request: req.Input(),
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Info().Str("job_id", job.ID).Str("user_id", id.UserID).Msg("generation: job queued")
	return job, nil
}

// Job returns a queued job owned by the caller.
func (s *Service) Job(ctx context.Context, id domain.Identity, jobID string) (*domain.GenerationJob, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, domain.ErrNotFound
	}
	return s.jobs.GetByID(ctx, id.UserID, jobID)
}

// RunJob executes a claimed job and records its terminal status.
func (s *Service) RunJob(ctx context.Context, job *domain.GenerationJob) (domain.QueueStatus, error) {
	if job == nil {
		return "", errors.New("generation: job is required")
	}
	if s.jobs == nil {
		return "", errors.New("generation: job queue is not configured")
	}
	id := domain.Identity{UserID: job.OwnerID, Locale: job.Locale}
	logger := s.logger.With().Str("job_id", job.ID).Logger()

	var (
		gen    *domain.Generation
		runErr error
	)
	req, err := domain.NewGenerationRequest(job.Request)
	if err != nil {
		runErr = err
		s.notifyFailure(ctx, id, err)
	} else {
		gen, runErr = s.run(ctx, id, req, func(predictionID string) {
			if err := s.jobs.MarkSubmitted(ctx, job.ID, predictionID); err != nil {
				logger.Warn().Err(err).Str("prediction_id", predictionID).Msg("generation: record prediction id failed")
			}
		})
	}

	status := domain.QueueStatusSucceeded
	generationID, errMsg := "", ""
	if runErr != nil {
		status = queueStatusFor(runErr)
		errMsg = failureReason(job.Locale, runErr)
	} else {
		generationID = gen.ID
	}
	if err := s.jobs.Finish(context.WithoutCancel(ctx), job.ID, status, generationID, errMsg); err != nil {
		logger.Error().Err(err).Str("status", string(status)).Msg("generation: record job status failed")
		if runErr == nil {
			runErr = fmt.Errorf("finish job: %w", err)
		}
	}
	return status, runErr
}

// Notifications lists the caller's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, id domain.Identity, unreadOnly bool) ([]domain.Notification, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	return s.notifications.List(ctx, id.UserID, unreadOnly, notificationLimit)
}

// MarkNotificationsRead marks every unread notification of the caller as read.
func (s *Service) MarkNotificationsRead(ctx context.Context, id domain.Identity) (int64, error) {
	if err := requireIdentity(id); err != nil {
		return 0, err
	}
	return s.notifications.MarkAllRead(ctx, id.UserID)
}

// Generation returns one of the caller's generations.
func (s *Service) Generation(ctx context.Context, id domain.Identity, generationID string) (*domain.Generation, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	return s.generations.GetByID(ctx, id.UserID, generationID)
}

// WriteArchive downloads every result image of gen and streams them into a zip archive on w.
func (s *Service) WriteArchive(ctx context.Context, gen *domain.Generation, w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, r := range gen.Results {
		data, err := s.download(ctx, r.ImageURL)
		if err != nil {
			return fmt.Errorf("download %s: %w", r.ID, err)
		}
		name := r.ID + mimetype.Detect(data).Extension()
		if err := zw.Add(name, gen.CreatedAt, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.maxDownload)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > s.maxDownload {
		return nil, fmt.Errorf("image exceeds %d bytes", s.maxDownload)
	}
	return data, nil
}

func (s *Service) notifyFailure(ctx context.Context, id domain.Identity, err error) {
	s.notify(ctx, id, domain.NotificationError, failureMessage(id.Locale, failureReason(id.Locale, err)))
}

// notify stores a notification even when ctx was cancelled; failures are only logged.
func (s *Service) notify(ctx context.Context, id domain.Identity, kind domain.NotificationKind, msg string) {
	n := &domain.Notification{OwnerID: id.UserID, Kind: kind, Message: msg}
	if err := s.notifications.Create(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Str("type", string(kind)).Msg("generation: notification failed")
	}
}

func failureReason(locale string, err error) string {
	var timeout *prediction.TimeoutError
	switch {
	case errors.As(err, &timeout):
		return timedOutReason(locale)
	case errors.Is(err, context.Canceled):
		return cancelledReason(locale)
	}
	return err.Error()
}

func queueStatusFor(err error) domain.QueueStatus {
	var timeout *prediction.TimeoutError
	if errors.As(err, &timeout) {
		return domain.QueueStatusTimedOut
	}
	return domain.QueueStatusFailed
}

func requireIdentity(id domain.Identity) error {
	if strings.TrimSpace(id.UserID) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}
