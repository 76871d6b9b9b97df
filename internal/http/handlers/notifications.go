package handlers

import (
	"net/http"
	"strconv"

	"brandkit/internal/domain"
)

func (a *App) Notifications(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	unreadOnly := false
	if v := r.URL.Query().Get("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unread must be a boolean")
			return
		}
		unreadOnly = b
	}
	items, err := a.Service.Notifications(r.Context(), id, unreadOnly)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Notification{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	id, ok := a.identity(w, r)
	if !ok {
		return
	}
	n, err := a.Service.MarkNotificationsRead(r.Context(), id)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"updated": n})
}
