package llm

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultSystemPrompt is used when no persona file is configured.
const DefaultSystemPrompt = "You are a helpful voice assistant. Keep responses concise and conversational."

// Adapter is a single LLM backend as seen by the Router. Implementations
// live under pkg/llm/providers and must be safe for concurrent use.
type Adapter interface {
	// Name returns the provider family name ("openai", "claude", ...).
	Name() string

	// Initialize prepares the adapter for use: discovers or seeds the model
	// catalog, picks a default model, and runs a startup health check whose
	// outcome it records on itself.
	Initialize(ctx context.Context) error

	// Chat sends one user message with prior turns as context and returns the
	// assistant text. An empty model means the adapter's current model.
	Chat(ctx context.Context, message string, history []Turn, model string) (string, error)

	// HealthCheck probes the backend. It reports the outcome without
	// mutating the adapter's health flag.
	HealthCheck(ctx context.Context) bool

	Healthy() bool
	SetHealthy(healthy bool)

	// Available reports whether the adapter can serve chat right now:
	// credential present (when one is required) and last health check passed.
	Available() bool

	// RequiresCredential distinguishes hosted backends from local ones.
	RequiresCredential() bool

	Models() []ModelInfo
	CurrentModel() string

	// SetModel switches the current model. It reports false when the adapter
	// rejects the model id.
	SetModel(model string) bool
}

// Health is an atomic health flag adapters embed. The flag only changes via
// SetHealthy; chat failures never touch it.
type Health struct {
	healthy atomic.Bool
}

func (h *Health) Healthy() bool           { return h.healthy.Load() }
func (h *Health) SetHealthy(healthy bool) { h.healthy.Store(healthy) }

// Catalog tracks a provider's model list and current selection.
type Catalog struct {
	mu      sync.Mutex
	models  []ModelInfo
	current string
}

// Replace swaps the model list. The current selection is kept if the new
// list still carries it as available, otherwise it resets to the first
// available model.
func (c *Catalog) Replace(models []ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = models
	if c.current != "" && c.availableLocked(c.current) {
		return
	}
	c.current = c.firstAvailableLocked()
}

// Models returns a copy of the model list.
func (c *Catalog) Models() []ModelInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ModelInfo, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetCurrent forces the current selection without validation.
func (c *Catalog) SetCurrent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = id
}

// Select switches to a model that is listed and available.
func (c *Catalog) Select(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.availableLocked(id) {
		return false
	}
	c.current = id
	return true
}

// SelectAny switches to any non-empty model id, listed or not. Local
// backends accept models they have not advertised.
func (c *Catalog) SelectAny(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = id
	return true
}

func (c *Catalog) availableLocked(id string) bool {
	for _, m := range c.models {
		if m.ID == id && m.Available {
			return true
		}
	}
	return false
}

func (c *Catalog) firstAvailableLocked() string {
	for _, m := range c.models {
		if m.Available {
			return m.ID
		}
	}
	return ""
}
