package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"brandkit/internal/domain"
	"brandkit/internal/middleware"
	"brandkit/internal/prediction"
)

// DefaultMaxUploadBytes caps multipart bodies carrying a source image.
const DefaultMaxUploadBytes = 10 << 20

// GenerationService is the application surface the handlers expose.
type GenerationService interface {
	Generate(ctx context.Context, id domain.Identity, in domain.GenerationInput) (*domain.Generation, error)
	History(ctx context.Context, id domain.Identity, limit int) ([]domain.HistoryItem, error)
	Generation(ctx context.Context, id domain.Identity, generationID string) (*domain.Generation, error)
	WriteArchive(ctx context.Context, gen *domain.Generation, w io.Writer) error
	Enqueue(ctx context.Context, id domain.Identity, in domain.GenerationInput) (*domain.GenerationJob, error)
	Job(ctx context.Context, id domain.Identity, jobID string) (*domain.GenerationJob, error)
	Notifications(ctx context.Context, id domain.Identity, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationsRead(ctx context.Context, id domain.Identity) (int64, error)
}

type App struct {
	Service        GenerationService
	Registry       *prediction.Registry
	Ping           func(ctx context.Context) error
	Logger         zerolog.Logger
	MaxUploadBytes int64
}

func NewApp(svc GenerationService, models *prediction.Registry, logger zerolog.Logger) *App {
	return &App{
		Service:        svc,
		Registry:       models,
		Logger:         logger,
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: msg}})
}

// identity returns the authenticated caller or writes a 401.
func (a *App) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return domain.Identity{}, false
	}
	return id, true
}

// serviceError maps service and prediction errors onto HTTP responses.
func (a *App) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		submission *prediction.SubmissionError
		transport  *prediction.TransportError
		failed     *prediction.JobFailedError
		timeout    *prediction.TimeoutError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidResolution),
		errors.Is(err, domain.ErrSourceImageRequired):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", err.Error())
	case errors.As(err, &tooLarge):
		a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
	case errors.As(err, &submission):
		a.error(w, http.StatusBadGateway, "submission_rejected", submission.Error())
	case errors.As(err, &transport):
		a.error(w, http.StatusBadGateway, "upstream_unavailable", "prediction service unavailable")
	case errors.As(err, &failed):
		a.error(w, http.StatusUnprocessableEntity, "generation_failed", failed.Error())
	case errors.As(err, &timeout):
		a.error(w, http.StatusGatewayTimeout, "timeout", "prediction timed out")
	case errors.Is(err, context.Canceled):
		a.error(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	default:
		a.log(r).Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// log prefers the request scoped logger installed by the access log middleware.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}
