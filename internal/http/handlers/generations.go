package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"brandkit/internal/domain"
)

type generationResponse struct {
	ID           string               `json:"id"`
	Prompt       string               `json:"prompt"`
	Model        string               `json:"model"`
	Mode         domain.Mode          `json:"mode"`
	Styles       []string             `json:"styles"`
	PredictionID string               `json:"prediction_id"`
	Results      []domain.ResultImage `json:"results"`
	CreatedAt    time.Time            `json:"created_at"`
}

func newGenerationResponse(g *domain.Generation) generationResponse {
	styles := g.Styles
	if styles == nil {
		styles = []string{}
	}
	results := []domain.ResultImage(g.Results)
	if results == nil {
		results = []domain.ResultImage{}
	}
	return generationResponse{
		ID:           g.ID,
		Prompt:       g.Prompt,
		Model:        g.ModelID,
		Mode:         g.Mode,
		Styles:       styles,
		PredictionID: g.PredictionID,
		Results:      results,
		CreatedAt:    g.CreatedAt,
	}
}

// Generate runs a generation and blocks until the prediction finishes.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	in, err := a.decodeGenerationInput(w, r)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	gen, err := a.Service.Generate(r.Context(), id, in)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newGenerationResponse(gen))
}

// GetGeneration returns one of the caller's generations.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	gen, err := a.Service.Generation(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newGenerationResponse(gen))
}

func (a *App) History(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.Service.History(r.Context(), id, limit)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.HistoryItem{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// Archive streams every image of a generation as a zip download.
func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	gen, err := a.Service.Generation(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if len(gen.Results) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "generation has no images")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=generation-%s.zip", gen.ID))
	if err := a.Service.WriteArchive(r.Context(), gen, w); err != nil {
		// Headers are already sent; the client sees a truncated archive.
		a.log(r).Error().Err(err).Str("generation_id", gen.ID).Msg("http: archive failed")
	}
}
