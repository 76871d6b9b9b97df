package handlers

import (
	"context"
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			a.log(r).Warn().Err(err).Msg("http: health check failed")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type modelsResponse struct {
	Default string   `json:"default"`
	Models  []string `json:"models"`
}

// ListModels lists the model identifiers the resolver knows about.
func (a *App) ListModels(w http.ResponseWriter, r *http.Request) {
	if a.Registry == nil {
		a.json(w, http.StatusOK, modelsResponse{Models: []string{}})
		return
	}
	a.json(w, http.StatusOK, modelsResponse{Default: a.Registry.Default().ID, Models: a.Registry.IDs()})
}
