package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/videofeedback/HAL2025/pkg/llm"
	"github.com/videofeedback/HAL2025/pkg/relay/dispatch"
	"github.com/videofeedback/HAL2025/pkg/relay/lifecycle"
	"github.com/videofeedback/HAL2025/pkg/relay/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := session.NewStore(logger)
	router := llm.NewRouter(logger)
	disp, err := dispatch.New(dispatch.Dependencies{
		Logger: logger,
		Store:  store,
		Router: router,
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	srv, err := New(Dependencies{
		Logger:     logger,
		Store:      store,
		Router:     router,
		Dispatcher: disp,
		Lifecycle:  lifecycle.New(),
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv
}

func TestSessionRoundTripThroughRouter(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, want 200", rec.Code)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/session/"+created.SessionID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestProviderStatusEmpty(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Providers map[string]llm.ProviderStatus `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Providers) != 0 {
		t.Fatalf("expected no providers, got %v", body.Providers)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected an X-Request-ID header")
	}
}
