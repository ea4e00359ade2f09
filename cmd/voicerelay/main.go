// voicerelay is the voice chat relay: HTTP session management, a websocket
// message loop per session, and an LLM provider chain with fallback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/videofeedback/HAL2025/internal/dotenv"
	"github.com/videofeedback/HAL2025/pkg/llm"
	"github.com/videofeedback/HAL2025/pkg/llm/providers/claude"
	"github.com/videofeedback/HAL2025/pkg/llm/providers/gemini"
	"github.com/videofeedback/HAL2025/pkg/llm/providers/ollama"
	"github.com/videofeedback/HAL2025/pkg/llm/providers/openai"
	"github.com/videofeedback/HAL2025/pkg/monitor"
	"github.com/videofeedback/HAL2025/pkg/relay/config"
	"github.com/videofeedback/HAL2025/pkg/relay/dispatch"
	"github.com/videofeedback/HAL2025/pkg/relay/lifecycle"
	"github.com/videofeedback/HAL2025/pkg/relay/metrics"
	"github.com/videofeedback/HAL2025/pkg/relay/protocol"
	"github.com/videofeedback/HAL2025/pkg/relay/server"
	"github.com/videofeedback/HAL2025/pkg/relay/session"
	"github.com/videofeedback/HAL2025/pkg/voice"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading configuration")
	flag.Parse()

	if err := dotenv.LoadFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "voicerelay: %v\n", err)
		os.Exit(1)
	}
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "voicerelay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logBuffer := monitor.NewLogBuffer(1000)
	logger := newLogger(cfg, logBuffer)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	persona := llm.DefaultSystemPrompt
	if p, ok := config.LoadPersona(cfg.PersonaFile); ok {
		persona = p
		logger.Info("persona loaded", "path", cfg.PersonaFile)
	}

	router := llm.NewRouter(logger, llm.WithChain(cfg.ProviderChain))
	ollamaAdapter := buildProviders(ctx, cfg, logger, httpClient, persona, router)

	// The active-sessions gauge reads through this pointer; it is set
	// before the server starts accepting scrapes.
	var store *session.Store
	m := metrics.New("voicerelay", func() int {
		if store == nil {
			return 0
		}
		return store.Count()
	})
	store = session.NewStore(logger,
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
		session.WithCreateHook(func() { m.SessionsCreatedTotal.Inc() }),
		session.WithReapHook(func(removed int) { m.SessionsReapedTotal.Add(float64(removed)) }),
	)

	var transcriber voice.Transcriber
	if cfg.STTBaseURL != "" {
		transcriber = voice.NewHTTPTranscriber(cfg.STTBaseURL, cfg.STTAPIKey,
			voice.WithSTTModel(cfg.STTModel),
			voice.WithSTTLanguage(cfg.STTLanguage),
			voice.WithSTTHTTPClient(httpClient),
		)
	}
	var synthesizer voice.Synthesizer
	if cfg.TTSBaseURL != "" {
		synthesizer = voice.NewHTTPSynthesizer(cfg.TTSBaseURL, cfg.TTSAPIKey,
			voice.WithTTSModel(cfg.TTSModel),
			voice.WithTTSVoice(cfg.TTSVoice),
			voice.WithTTSHTTPClient(httpClient),
		)
	}

	mon := monitor.New(logger, logBuffer, monitorOptions(router, store, ollamaAdapter, transcriber, synthesizer)...)

	disp, err := dispatch.New(dispatch.Dependencies{
		Logger:      logger,
		Store:       store,
		Router:      router,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Monitor:     mon,
		Metrics:     m,
		Config: dispatch.Config{
			WriteTimeout:    cfg.WSWriteTimeout,
			MaxMessageBytes: cfg.WSMaxFrameBytes,
		},
	})
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	lc := lifecycle.New()
	srv, err := server.New(server.Dependencies{
		Logger:      logger,
		Store:       store,
		Router:      router,
		Dispatcher:  disp,
		Metrics:     m,
		Lifecycle:   lc,
		Credentials: cfg.Credentials(),
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	go store.Run(ctx, cfg.SessionReapInterval)
	go healthSweep(ctx, cfg.HealthCheckInterval, router, m)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", cfg.Addr, "providers", router.Count())
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
			return
		}
		listenErr <- nil
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	lc.SetDraining(true)
	notified := store.Broadcast(&protocol.ServerError{
		Type:      protocol.TypeError,
		Message:   "server shutting down",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if notified > 0 {
		logger.Info("shutdown notice sent", "sessions", notified)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-listenErr; err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("relay stopped")
	return nil
}

// newLogger builds the process logger, teeing every record through the
// monitor's ring buffer so introspection queries can report recent errors.
func newLogger(cfg config.Config, buffer *monitor.LogBuffer) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(buffer.Handler(h))
}

// buildProviders constructs the configured adapters, initializes the router
// with them, and returns the local ollama adapter (nil when disabled) for
// use as the monitor's narration backend.
func buildProviders(ctx context.Context, cfg config.Config, logger *slog.Logger, client *http.Client, persona string, router *llm.Router) *ollama.Provider {
	var candidates []llm.Adapter

	if cfg.OpenAIAPIKey != "" {
		candidates = append(candidates, openai.New(cfg.OpenAIAPIKey,
			openai.WithHTTPClient(client), openai.WithSystemPrompt(persona)))
	}
	if cfg.AnthropicAPIKey != "" {
		candidates = append(candidates, claude.New(cfg.AnthropicAPIKey,
			claude.WithHTTPClient(client), claude.WithSystemPrompt(persona)))
	}
	if cfg.GeminiAPIKey != "" {
		candidates = append(candidates, gemini.New(cfg.GeminiAPIKey,
			gemini.WithHTTPClient(client), gemini.WithSystemPrompt(persona)))
	}

	var local *ollama.Provider
	if cfg.OllamaEnabled {
		local = ollama.New(
			ollama.WithBaseURL(cfg.OllamaBaseURL),
			ollama.WithHTTPClient(client),
			ollama.WithSystemPrompt(persona),
		)
		candidates = append(candidates, local)
	}

	router.Initialize(ctx, candidates...)
	if local != nil && !local.Healthy() {
		logger.Warn("ollama unreachable, local fallback disabled", "base_url", cfg.OllamaBaseURL)
		local = nil
	}
	return local
}

func monitorOptions(router *llm.Router, store *session.Store, local *ollama.Provider, transcriber voice.Transcriber, synthesizer voice.Synthesizer) []monitor.Option {
	opts := []monitor.Option{
		monitor.WithSessionCount(store.Count),
		monitor.WithProviderStatus(func() (healthy, total int) {
			for _, st := range router.Status() {
				if st.Available && st.Healthy {
					healthy++
				}
			}
			return healthy, router.Count()
		}),
		monitor.WithVoice(
			func() bool { return transcriber != nil },
			func() bool { return synthesizer != nil },
		),
	}
	if local != nil {
		opts = append(opts, monitor.WithChat(func(ctx context.Context, prompt string) (string, error) {
			return local.Chat(ctx, prompt, nil, "")
		}))
	}
	return opts
}

// healthSweep re-probes every registered provider on a fixed cadence and
// mirrors the results into the health gauge.
func healthSweep(ctx context.Context, interval time.Duration, router *llm.Router, m *metrics.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			router.HealthCheckAll(ctx)
			for name, st := range router.Status() {
				m.SetProviderHealth(name, st.Available && st.Healthy)
			}
		}
	}
}
