package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// DefaultChain is the fallback order Chat walks when the requested provider
// cannot serve.
var DefaultChain = []string{"openai", "claude", "gemini", "ollama"}

// placeholderFamilies are provider families reported in Status even though no
// adapter ships for them yet, so status consumers see a stable key set.
var placeholderFamilies = []string{"xai", "lm_studio"}

// ProviderStatus is one provider's entry in the status snapshot.
type ProviderStatus struct {
	Available    bool        `json:"available"`
	Healthy      bool        `json:"model_health"`
	CurrentModel string      `json:"current_model"`
	Models       []ModelInfo `json:"models"`
}

// Router owns the provider registry and routes chat requests through the
// fallback chain. Health flags on adapters change only through Initialize and
// HealthCheckAll; a failed chat never marks a provider unhealthy.
type Router struct {
	logger *slog.Logger
	chain  []string

	mu           sync.Mutex
	adapters     map[string]Adapter
	current      string
	currentModel string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithChain overrides the fallback order.
func WithChain(chain []string) RouterOption {
	return func(r *Router) {
		if len(chain) > 0 {
			r.chain = chain
		}
	}
}

// NewRouter builds an empty router; call Initialize to register adapters.
func NewRouter(logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		logger:   logger,
		chain:    DefaultChain,
		adapters: make(map[string]Adapter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize initializes each candidate adapter and decides registration.
// Hosted adapters (credentialed) register even when their startup health
// check fails, so a later sweep can bring them back. Local adapters register
// only when reachable at startup. The first registered chain member that can
// serve becomes the default provider.
func (r *Router) Initialize(ctx context.Context, candidates ...Adapter) {
	for _, a := range candidates {
		if err := a.Initialize(ctx); err != nil {
			r.logger.Warn("provider initialization failed",
				"provider", a.Name(), "error", err)
		}
		if !a.RequiresCredential() && !a.Healthy() {
			r.logger.Info("skipping unreachable local provider", "provider", a.Name())
			continue
		}
		r.mu.Lock()
		r.adapters[a.Name()] = a
		r.mu.Unlock()
		r.logger.Info("provider registered",
			"provider", a.Name(),
			"healthy", a.Healthy(),
			"model", a.CurrentModel())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.chain {
		a, ok := r.adapters[name]
		if !ok || !a.Available() || a.CurrentModel() == "" {
			continue
		}
		r.current = name
		r.currentModel = a.CurrentModel()
		r.logger.Info("default provider selected",
			"provider", name, "model", r.currentModel)
		return
	}
	r.logger.Warn("no default provider available")
}

// Registered reports whether a provider family has an adapter.
func (r *Router) Registered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.adapters[name]
	return ok
}

// Count returns the number of registered adapters.
func (r *Router) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.adapters)
}

// Current returns the default provider and model for requests that do not
// name one.
func (r *Router) Current() (provider, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.currentModel
}

// SetProvider switches the default provider, and optionally its model, for
// requests that do not name one. The provider must be registered and
// available. A model the adapter does not offer is ignored: the switch
// succeeds and the adapter keeps its own current model.
func (r *Router) SetProvider(name, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adapters[name]
	if !ok {
		return fmt.Errorf("provider %q is not registered", name)
	}
	if !a.Available() {
		return fmt.Errorf("provider %q is not available", name)
	}
	r.current = name
	if model != "" && !a.SetModel(model) {
		r.logger.Warn("requested model not offered, keeping current",
			"provider", name, "model", model)
	}
	r.currentModel = a.CurrentModel()
	return nil
}

// SetModel switches the model of the named provider, or of the default
// provider when name is empty. The router's current model moves only when
// the target is the default provider.
func (r *Router) SetModel(model, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		name = r.current
	}
	a, ok := r.adapters[name]
	if !ok {
		if name == "" {
			return fmt.Errorf("no default provider selected")
		}
		return fmt.Errorf("provider %q is not registered", name)
	}
	if !a.SetModel(model) {
		return fmt.Errorf("provider %q does not offer model %q", name, model)
	}
	if name == r.current {
		r.currentModel = a.CurrentModel()
	}
	return nil
}

// Chat attempts the requested provider first, then walks the fallback chain.
// Each provider is attempted at most once per call; unregistered and
// unavailable providers are skipped without counting as attempts. An empty
// provider or model falls back to the router defaults.
func (r *Router) Chat(ctx context.Context, message string, history []Turn, provider, model string) (*Result, error) {
	r.mu.Lock()
	requested := provider
	if requested == "" {
		requested = r.current
	}
	requestedModel := model
	if requestedModel == "" {
		requestedModel = r.currentModel
	}
	adapters := make(map[string]Adapter, len(r.adapters))
	for name, a := range r.adapters {
		adapters[name] = a
	}
	chain := r.chain
	r.mu.Unlock()

	if len(adapters) == 0 {
		return nil, ErrNoProviderAvailable
	}

	if a, ok := adapters[requested]; ok && a.Available() {
		if res := r.attempt(ctx, a, message, history, requestedModel); res != nil {
			res.FallbackUsed = false
			return res, nil
		}
	}

	for _, name := range chain {
		if name == requested {
			continue
		}
		a, ok := adapters[name]
		if !ok || !a.Available() {
			continue
		}
		if res := r.attempt(ctx, a, message, history, a.CurrentModel()); res != nil {
			res.FallbackUsed = true
			r.logger.Info("chat served by fallback provider",
				"requested", requested, "provider", name, "model", res.Model)
			return res, nil
		}
	}

	return nil, ErrAllProvidersFailed
}

// attempt runs one chat against one adapter and returns nil on any failure,
// including empty completions.
func (r *Router) attempt(ctx context.Context, a Adapter, message string, history []Turn, model string) *Result {
	if model == "" {
		model = a.CurrentModel()
	}
	text, err := a.Chat(ctx, message, history, model)
	if err != nil {
		r.logger.Warn("provider chat failed",
			"provider", a.Name(), "model", model, "error", err)
		return nil
	}
	if strings.TrimSpace(text) == "" {
		r.logger.Warn("provider returned empty completion",
			"provider", a.Name(), "model", model)
		return nil
	}
	return &Result{Text: text, Provider: a.Name(), Model: model}
}

// Status reports every known provider family, including unregistered ones as
// unavailable placeholders.
func (r *Router) Status() map[string]ProviderStatus {
	r.mu.Lock()
	adapters := make(map[string]Adapter, len(r.adapters))
	for name, a := range r.adapters {
		adapters[name] = a
	}
	chain := r.chain
	r.mu.Unlock()

	out := make(map[string]ProviderStatus)
	for _, name := range chain {
		out[name] = ProviderStatus{Models: []ModelInfo{}}
	}
	for _, name := range placeholderFamilies {
		out[name] = ProviderStatus{Models: []ModelInfo{}}
	}
	for name, a := range adapters {
		out[name] = ProviderStatus{
			Available:    a.Available(),
			Healthy:      a.Healthy(),
			CurrentModel: a.CurrentModel(),
			Models:       a.Models(),
		}
	}
	return out
}

// HealthCheckAll probes every registered adapter concurrently and records
// the outcome on each. A panicking probe marks only its own provider
// unhealthy.
func (r *Router) HealthCheckAll(ctx context.Context) {
	r.mu.Lock()
	adapters := make(map[string]Adapter, len(r.adapters))
	for name, a := range r.adapters {
		adapters[name] = a
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for name, a := range adapters {
		wg.Add(1)
		go func(name string, a Adapter) {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					a.SetHealthy(false)
					r.logger.Error("health check panicked",
						"provider", name, "panic", v)
				}
			}()
			healthy := a.HealthCheck(ctx)
			a.SetHealthy(healthy)
			r.logger.Info("health check completed",
				"provider", name, "healthy", healthy)
		}(name, a)
	}
	wg.Wait()
}
