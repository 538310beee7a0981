package handlers

import (
	"net/http"

	"github.com/ivalora/gadget-rms/internal/models"
)

func (r *Router) listNotifications(w http.ResponseWriter, req *http.Request) {
	unread := req.URL.Query().Get("unread") == "true"
	list, err := r.notifications.List(req.Context(), actor(req).Role, unread, queryInt(req, "limit"))
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (r *Router) markNotificationRead(w http.ResponseWriter, req *http.Request) {
	id, err := pathUUID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.notifications.MarkRead(req.Context(), id.String()); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
