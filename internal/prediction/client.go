package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"brandkit/internal/domain"
	"brandkit/internal/infra"
	"brandkit/internal/infra/metrics"
	"brandkit/internal/storage"
)

const (
	DefaultPollInterval = time.Second
	DefaultTimeout      = 30 * time.Second

	sourceImagePrefix = "ai-inputs"
	maxResponseBytes  = 4 << 20
)

// ImageStore places source images somewhere the remote service can fetch them.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// publicStore is implemented by stores that serve every object below one URL prefix.
type publicStore interface {
	PublicBaseURL() string
}

// Options configures a Client.
type Options struct {
	// BaseURL is the predictions collection endpoint, e.g. https://api.replicate.com/v1/predictions.
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	Registry     *Registry
	Store        ImageStore
	Logger       *infra.Logger
	PollInterval time.Duration
	Timeout      time.Duration
	Clock        Clock
}

// PollOptions overrides the client defaults for a single AwaitCompletion call.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Client submits prediction jobs and polls them to completion.
// A Client holds no per-job state and may be shared by concurrent callers.
type Client struct {
	endpoint     string
	token        string
	httpClient   *http.Client
	resolver     *Resolver
	store        ImageStore
	sourcePrefix string
	logger       zerolog.Logger
	pollInterval time.Duration
	timeout      time.Duration
	clock        Clock
}

// NewClient validates opts. It fails when the endpoint or token is missing.
func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	token := strings.TrimSpace(opts.Token)
	if endpoint == "" || token == "" {
		return nil, ErrMissingConfig
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "prediction").Logger()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	sourcePrefix := ""
	if ps, ok := opts.Store.(publicStore); ok {
		if base := strings.TrimRight(strings.TrimSpace(ps.PublicBaseURL()), "/"); base != "" {
			sourcePrefix = base + "/"
		}
	}
	return &Client{
		endpoint:     endpoint,
		token:        token,
		httpClient:   httpClient,
		resolver:     NewResolver(opts.Registry),
		store:        opts.Store,
		sourcePrefix: sourcePrefix,
		logger:       logger,
		pollInterval: interval,
		timeout:      timeout,
		clock:        clock,
	}, nil
}

// Resolver exposes the parameter resolver used for submissions.
func (c *Client) Resolver() *Resolver { return c.resolver }

// Generate submits req and waits for its result.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest, opts PollOptions) (*domain.SubmittedJob, domain.GenerationResult, error) {
	job, err := c.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	result, err := c.AwaitCompletion(ctx, job, opts)
	return job, result, err
}

// UploadSource stores a raw source image and returns its public URI.
func (c *Client) UploadSource(ctx context.Context, img *domain.ImageUpload) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", domain.ErrSourceImageRequired
	}
	if c.store == nil {
		return "", errors.New("prediction: no image store configured")
	}
	key := storage.NewObjectKey(sourceImagePrefix, img.Name)
	url, err := c.store.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return "", fmt.Errorf("prediction: upload source image: %w", err)
	}
	c.logger.Debug().Str("key", key).Msg("prediction: source image uploaded")
	return url, nil
}

// Submit issues exactly one submission request. In image-to-image mode a pending
// source image is uploaded first.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (*domain.SubmittedJob, error) {
	if req.NeedsUpload() {
		ref, err := c.UploadSource(ctx, req.SourceImage())
		if err != nil {
			return nil, err
		}
		req = req.WithSourceImageRef(ref)
	}
	if err := c.checkSourceRef(req); err != nil {
		return nil, err
	}
	profile, fellBack := c.resolver.Profile(req)
	if fellBack {
		c.logger.Debug().Str("requested", req.ModelID()).Str("model", profile.ID).Msg("prediction: using default model")
	}
	payload, err := c.resolver.Resolve(req)
	if err != nil {
		return nil, err
	}
	// Metrics are labelled by the registry profile; caller-supplied ids stay on the job.
	modelID := c.resolver.ModelID(req)
	metricModel := profile.ID

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("prediction: encode payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "submit", Err: err}
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordSubmission(metricModel, "transport_error")
		return nil, &TransportError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.RecordSubmission(metricModel, "transport_error")
		return nil, &TransportError{Op: "submit", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordSubmission(metricModel, "rejected")
		c.logger.Warn().Int("status", resp.StatusCode).Str("model", modelID).Msg("prediction: submission rejected")
		return nil, &SubmissionError{StatusCode: resp.StatusCode, Message: remoteMessage(detailField(raw), "")}
	}

	var out predictionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		metrics.RecordSubmission(metricModel, "transport_error")
		return nil, &TransportError{Op: "submit", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if strings.TrimSpace(out.ID) == "" {
		metrics.RecordSubmission(metricModel, "transport_error")
		return nil, &TransportError{Op: "submit", StatusCode: resp.StatusCode, Err: errors.New("response has no prediction id")}
	}

	metrics.RecordSubmission(metricModel, "accepted")
	job := domain.NewSubmittedJob(out.ID, c.clock.Now(), payload.Prompt(), modelID, req.SourceImageRef())
	c.logger.Info().Str("prediction_id", job.ID).Str("model", modelID).Str("mode", string(req.Mode())).Msg("prediction: submitted")
	return job, nil
}

// AwaitCompletion polls job until it succeeds, fails or runs out of time.
// The timeout is measured from job.SubmittedAt and checked before every poll; it
// also bounds a poll that is still in flight.
// Transport failures are not retried. Cancelling ctx abandons the job locally only.
func (c *Client) AwaitCompletion(ctx context.Context, job *domain.SubmittedJob, opts PollOptions) (domain.GenerationResult, error) {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("prediction: job is required")
	}
	if job.Status().Terminal() {
		return nil, ErrJobFinished
	}
	if !job.Acquire() {
		return nil, ErrJobBusy
	}
	defer job.Release()

	interval, timeout := c.pollInterval, c.timeout
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	logger := c.logger.With().Str("prediction_id", job.ID).Logger()
	job.Advance(domain.JobStatusRunning)

	// The budget also bounds in-flight polls and the waits between them.
	budgetCtx, cancel := context.WithTimeout(ctx, timeout-c.clock.Now().Sub(job.SubmittedAt))
	defer cancel()

	timedOut := func(attempts int) error {
		elapsed := c.clock.Now().Sub(job.SubmittedAt)
		job.Advance(domain.JobStatusTimedOut)
		metrics.RecordOutcome("timed_out", elapsed.Seconds())
		logger.Warn().Int("polls", attempts).Dur("elapsed", elapsed).Msg("prediction: timed out")
		return &TimeoutError{JobID: job.ID, Timeout: timeout, Elapsed: elapsed, Attempts: attempts}
	}

	truncated := false
	for attempts := 0; ; {
		elapsed := c.clock.Now().Sub(job.SubmittedAt)
		if elapsed > timeout || (truncated && elapsed >= timeout) {
			return nil, timedOut(attempts)
		}

		attempts++
		status, err := c.poll(budgetCtx, job.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if budgetCtx.Err() != nil {
				return nil, timedOut(attempts)
			}
			job.Advance(domain.JobStatusFailed)
			metrics.RecordOutcome("transport_error", elapsed.Seconds())
			logger.Error().Err(err).Int("polls", attempts).Msg("prediction: poll failed")
			return nil, err
		}
		metrics.RecordPoll(status.Status)
		logger.Debug().Int("poll", attempts).Str("status", status.Status).Msg("prediction: polled")

		switch status.Status {
		case StatusSucceeded:
			urls, err := status.outputURLs()
			if err != nil {
				job.Advance(domain.JobStatusFailed)
				return nil, &TransportError{Op: "poll", JobID: job.ID, Err: err}
			}
			job.Advance(domain.JobStatusSucceeded)
			metrics.RecordOutcome("succeeded", c.clock.Now().Sub(job.SubmittedAt).Seconds())
			logger.Info().Int("polls", attempts).Int("images", len(urls)).Msg("prediction: succeeded")
			return buildResult(job, urls), nil
		case StatusFailed:
			job.Advance(domain.JobStatusFailed)
			metrics.RecordOutcome("failed", c.clock.Now().Sub(job.SubmittedAt).Seconds())
			msg := status.errorMessage()
			logger.Warn().Int("polls", attempts).Str("error", msg).Msg("prediction: failed remotely")
			return nil, &JobFailedError{JobID: job.ID, Message: msg}
		}

		wait := interval
		if remaining := timeout - c.clock.Now().Sub(job.SubmittedAt); remaining < wait {
			wait = max(remaining, 0)
			truncated = true
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-budgetCtx.Done():
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, timedOut(attempts)
		case <-c.clock.After(wait):
		}
	}
}

// checkSourceRef rejects image-to-image refs that do not point into the configured store.
func (c *Client) checkSourceRef(req domain.GenerationRequest) error {
	if c.sourcePrefix == "" || req.Mode() != domain.ModeImageToImage {
		return nil
	}
	if !strings.HasPrefix(req.SourceImageRef(), c.sourcePrefix) {
		return fmt.Errorf("%w: source image must be uploaded to the asset store", domain.ErrInvalidRequest)
	}
	return nil
}

func (c *Client) poll(ctx context.Context, jobID string) (*predictionResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+jobID, nil)
	if err != nil {
		return nil, &TransportError{Op: "poll", JobID: jobID, Err: err}
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "poll", JobID: jobID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: "poll", JobID: jobID, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Op:         "poll",
			JobID:      jobID,
			StatusCode: resp.StatusCode,
			Err:        errors.New(remoteMessage(detailField(raw), http.StatusText(resp.StatusCode))),
		}
	}
	var out predictionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "poll", JobID: jobID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)
}

func buildResult(job *domain.SubmittedJob, urls []string) domain.GenerationResult {
	out := make(domain.GenerationResult, 0, len(urls))
	for i, url := range urls {
		out = append(out, domain.ResultImage{
			ID:             fmt.Sprintf("%s-%d", job.ID, i),
			ImageURL:       url,
			Prompt:         job.Prompt,
			ModelID:        job.ModelID,
			SourceImageRef: job.SourceImageRef,
		})
	}
	return out
}

// detailField returns the JSON value carrying an error explanation, or the raw body.
func detailField(raw []byte) json.RawMessage {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
		Title  json.RawMessage `json:"title"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		for _, v := range []json.RawMessage{envelope.Detail, envelope.Error, envelope.Title} {
			if len(v) > 0 && string(v) != "null" {
				return v
			}
		}
		return nil
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil
	}
	if len(text) > 200 {
		text = text[:200]
	}
	quoted, _ := json.Marshal(text)
	return quoted
}
