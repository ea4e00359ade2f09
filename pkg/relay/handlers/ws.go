package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/videofeedback/HAL2025/pkg/relay/dispatch"
	"github.com/videofeedback/HAL2025/pkg/relay/lifecycle"
)

// WSHandler upgrades GET /ws/{id} and hands the connection to the
// dispatcher. Session validity is checked by the dispatcher after the
// upgrade so the client receives a websocket close code rather than an
// HTTP error.
type WSHandler struct {
	Dispatcher *dispatch.Dispatcher
	Lifecycle  *lifecycle.Lifecycle
	Logger     *slog.Logger
}

func (h WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Lifecycle != nil && h.Lifecycle.Draining() {
		writeErrorJSON(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		if h.Logger != nil {
			h.Logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}
	defer conn.Close()

	h.Dispatcher.HandleConnection(r.Context(), conn, r.PathValue("id"))
}
