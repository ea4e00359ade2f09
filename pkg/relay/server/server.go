// Package server assembles the relay's HTTP surface: routes, middleware,
// and the handlers they dispatch to.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/videofeedback/HAL2025/pkg/llm"
	"github.com/videofeedback/HAL2025/pkg/relay/dispatch"
	"github.com/videofeedback/HAL2025/pkg/relay/handlers"
	"github.com/videofeedback/HAL2025/pkg/relay/lifecycle"
	"github.com/videofeedback/HAL2025/pkg/relay/metrics"
	"github.com/videofeedback/HAL2025/pkg/relay/mw"
	"github.com/videofeedback/HAL2025/pkg/relay/session"
)

type Dependencies struct {
	Logger     *slog.Logger
	Store      *session.Store
	Router     *llm.Router
	Dispatcher *dispatch.Dispatcher
	Metrics    *metrics.Metrics
	Lifecycle  *lifecycle.Lifecycle

	// Credentials is reported by the health endpoint: provider family to
	// whether its key is configured.
	Credentials map[string]bool
}

type Server struct {
	deps Dependencies
	mux  *http.ServeMux
}

func New(deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("server: router is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("server: dispatcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.Handle("POST /session", handlers.CreateSessionHandler{Store: s.deps.Store})
	s.mux.Handle("DELETE /session/{id}", handlers.DeleteSessionHandler{Store: s.deps.Store})
	s.mux.Handle("GET /ws/{id}", handlers.WSHandler{
		Dispatcher: s.deps.Dispatcher,
		Lifecycle:  s.deps.Lifecycle,
		Logger:     s.deps.Logger,
	})
	s.mux.Handle("GET /healthz", handlers.HealthHandler{
		Store:       s.deps.Store,
		Credentials: s.deps.Credentials,
	})
	s.mux.Handle("GET /providers/status", handlers.ProviderStatusHandler{
		Router: s.deps.Router,
	})
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
}

// Handler returns the mux wrapped in the middleware chain. RequestID runs
// outermost so the access log always sees an id.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Recover(s.deps.Logger, h)
	h = mw.AccessLog(s.deps.Logger, h)
	h = mw.RequestID(h)
	return h
}
