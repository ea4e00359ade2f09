// Package claude implements the Anthropic Messages adapter.
package claude

import (
	"context"
	"net/http"

	"github.com/videofeedback/HAL2025/pkg/llm"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultMaxTokens caps completion length for voice-sized replies.
	DefaultMaxTokens = 1000

	apiVersion = "2023-06-01"
)

// Provider implements llm.Adapter against the Anthropic Messages API.
type Provider struct {
	llm.Health

	apiKey       string
	baseURL      string
	httpClient   *http.Client
	systemPrompt string
	catalog      llm.Catalog
}

// Option configures the Claude provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// WithSystemPrompt sets the persona sent as the system field.
func WithSystemPrompt(prompt string) Option {
	return func(p *Provider) {
		if prompt != "" {
			p.systemPrompt = prompt
		}
	}
}

// New creates a new Claude provider.
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
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Available: true, CostTier: "high"},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", Available: true, CostTier: "low"},
		{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Available: false, CostTier: "high"},
	})
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "claude" }

// RequiresCredential reports that Claude is a hosted, keyed backend.
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

// Chat sends one messages request and returns the assistant text.
func (p *Provider) Chat(ctx context.Context, message string, history []llm.Turn, model string) (string, error) {
	if model == "" {
		model = p.catalog.Current()
	}

	messages := make([]chatMessage, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			chatMessage{Role: "user", Content: turn.User},
			chatMessage{Role: "assistant", Content: turn.Assistant})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	resp, err := p.doMessages(ctx, &messagesRequest{
		Model:     model,
		MaxTokens: DefaultMaxTokens,
		System:    p.systemPrompt,
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// HealthCheck sends a one-token message. It only reports the outcome; the
// health flag stays untouched.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	model := p.catalog.Current()
	if model == "" {
		model = "claude-3-haiku-20240307"
	}
	resp, err := p.doMessages(ctx, &messagesRequest{
		Model:     model,
		MaxTokens: 10,
		Messages:  []chatMessage{{Role: "user", Content: "Hello"}},
	})
	return err == nil && resp.text() != ""
}
