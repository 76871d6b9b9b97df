package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"brandkit/internal/domain"
)

type jobResponse struct {
	ID           string                 `json:"job_id"`
	Status       domain.QueueStatus     `json:"status"`
	PredictionID string                 `json:"prediction_id,omitempty"`
	GenerationID string                 `json:"generation_id,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Request      domain.GenerationInput `json:"request"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func newJobResponse(j *domain.GenerationJob) jobResponse {
	return jobResponse{
		ID:           j.ID,
		Status:       j.Status,
		PredictionID: j.PredictionID,
		GenerationID: j.GenerationID,
		Error:        j.ErrorMessage,
		Request:      j.Request,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// EnqueueJob queues a generation for the background worker.
func (a *App) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	in, err := a.decodeGenerationInput(w, r)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	job, err := a.Service.Enqueue(r.Context(), id, in)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	job, err := a.Service.Job(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}
