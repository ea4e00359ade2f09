// Package openai implements the OpenAI Chat Completions adapter.
package openai

import (
	"context"
	"net/http"

	"github.com/videofeedback/HAL2025/pkg/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultMaxTokens caps completion length for voice-sized replies.
	DefaultMaxTokens = 1000

	healthCheckModel = "gpt-3.5-turbo"
)

// Provider implements llm.Adapter against the OpenAI Chat Completions API.
type Provider struct {
	llm.Health

	apiKey       string
	baseURL      string
	httpClient   *http.Client
	systemPrompt string
	catalog      llm.Catalog
}

// Option configures the OpenAI provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// WithSystemPrompt sets the persona sent as the system message.
func WithSystemPrompt(prompt string) Option {
	return func(p *Provider) {
		if prompt != "" {
			p.systemPrompt = prompt
		}
	}
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{},
		systemPrompt: llm.DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.catalog.Replace([]llm.ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", Available: true, CostTier: "high"},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Available: true, CostTier: "low"},
		{ID: "o3-mini", Name: "o3 Mini", Available: false, CostTier: "medium"},
	})
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "openai" }

// RequiresCredential reports that OpenAI is a hosted, keyed backend.
func (p *Provider) RequiresCredential() bool { return true }

// Initialize runs the startup health check. The model catalog is static.
func (p *Provider) Initialize(ctx context.Context) error {
	p.SetHealthy(p.HealthCheck(ctx))
	return nil
}

// Available reports whether chat can be served right now.
func (p *Provider) Available() bool {
	return p.apiKey != "" && p.Healthy()
}

// Models returns the model catalog.
func (p *Provider) Models() []llm.ModelInfo { return p.catalog.Models() }

// CurrentModel returns the selected model id.
func (p *Provider) CurrentModel() string { return p.catalog.Current() }

// SetModel switches to a listed, available model.
func (p *Provider) SetModel(model string) bool { return p.catalog.Select(model) }

// Chat sends one completion request and returns the assistant text.
func (p *Provider) Chat(ctx context.Context, message string, history []llm.Turn, model string) (string, error) {
	if model == "" {
		model = p.catalog.Current()
	}

	messages := make([]chatMessage, 0, 2*len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: p.systemPrompt})
	for _, turn := range history {
		messages = append(messages,
			chatMessage{Role: "user", Content: turn.User},
			chatMessage{Role: "assistant", Content: turn.Assistant})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	resp, err := p.doChat(ctx, &chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// HealthCheck sends a one-token completion against a cheap model. It only
// reports the outcome; the health flag stays untouched.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	model := p.catalog.Current()
	if model == "" {
		model = healthCheckModel
	}
	resp, err := p.doChat(ctx, &chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: 10,
	})
	return err == nil && resp.text() != ""
}
