package handlers

import (
	"net/http"

	"github.com/videofeedback/HAL2025/pkg/relay/session"
)

// CreateSessionHandler handles POST /session.
type CreateSessionHandler struct {
	Store *session.Store
}

func (h CreateSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := h.Store.Create()
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":    sess.ID(),
		"websocket_url": "/ws/" + sess.ID(),
	})
}

// DeleteSessionHandler handles DELETE /session/{id}.
type DeleteSessionHandler struct {
	Store *session.Store
}

func (h DeleteSessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.Store.Remove(id) {
		writeErrorJSON(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}
