package handlers

import (
	"net/http"

	"github.com/ivalora/gadget-rms/internal/websocket"
)

// serveWs upgrades an authenticated request into a hub client that receives
// session events and may push SCAN messages.
func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		r.respondError(w, req, newAppError(CodeServiceUnavailable, "realtime updates not configured", http.StatusServiceUnavailable))
		return
	}
	websocket.ServeWs(r.hub, actor(req).ID, w, req)
}
