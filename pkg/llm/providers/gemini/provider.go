// Package gemini implements the Google Gemini generateContent adapter.
package gemini

import (
	"context"
	"net/http"

	"github.com/videofeedback/HAL2025/pkg/llm"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultMaxTokens caps completion length for voice-sized replies.
	DefaultMaxTokens = 1000
)

// Provider implements llm.Adapter against the Gemini API.
type Provider struct {
	llm.Health

	apiKey       string
	baseURL      string
	httpClient   *http.Client
	systemPrompt string
	catalog      llm.Catalog
}

// Option configures the Gemini provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// WithSystemPrompt sets the persona sent as the system instruction.
func WithSystemPrompt(prompt string) Option {
	return func(p *Provider) {
		if prompt != "" {
			p.systemPrompt = prompt
		}
	}
}

// New creates a new Gemini provider.
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
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Available: true, CostTier: "low"},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Available: true, CostTier: "high"},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Available: true, CostTier: "low"},
	})
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// RequiresCredential reports that Gemini is a hosted, keyed backend.
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

// Chat sends one generateContent request and returns the model text.
func (p *Provider) Chat(ctx context.Context, message string, history []llm.Turn, model string) (string, error) {
	if model == "" {
		model = p.catalog.Current()
	}

	contents := make([]content, 0, 2*len(history)+1)
	for _, turn := range history {
		contents = append(contents,
			content{Role: "user", Parts: []part{{Text: turn.User}}},
			content{Role: "model", Parts: []part{{Text: turn.Assistant}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: message}}})

	resp, err := p.doGenerate(ctx, model, &generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: p.systemPrompt}}},
		Contents:          contents,
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: DefaultMaxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

// HealthCheck sends a tiny generateContent request. It only reports the
// outcome; the health flag stays untouched.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.apiKey == "" {
		return false
	}
	model := p.catalog.Current()
	if model == "" {
		model = "gemini-2.0-flash"
	}
	resp, err := p.doGenerate(ctx, model, &generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: "Hello"}}}},
		GenerationConfig: &generationConfig{MaxOutputTokens: 10},
	})
	return err == nil && resp.text() != ""
}
