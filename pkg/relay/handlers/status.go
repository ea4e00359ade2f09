package handlers

import (
	"net/http"
	"time"

	"github.com/videofeedback/HAL2025/pkg/llm"
	"github.com/videofeedback/HAL2025/pkg/relay/session"
)

// HealthHandler handles GET /healthz.
type HealthHandler struct {
	Store *session.Store

	// Credentials maps provider family to whether its key is configured.
	Credentials map[string]bool
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	active := 0
	if h.Store != nil {
		active = h.Store.Count()
	}
	creds := h.Credentials
	if creds == nil {
		creds = map[string]bool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"active_sessions": active,
		"api_keys_loaded": creds,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// ProviderStatusHandler handles GET /providers/status.
type ProviderStatusHandler struct {
	Router *llm.Router
}

func (h ProviderStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.Router.Status()})
}
